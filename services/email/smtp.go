package emailsvc

import (
	"crypto/tls"
	"net/mail"

	gomail "github.com/go-mail/mail"
	"github.com/pkg/errors"

	"github.com/trezcool/klabu/core"
)

// SMTPTransport delivers emails over SMTP.
type SMTPTransport struct {
	host    string
	port    int
	user    string
	pass    string
	tlsMode string // "auto" | "starttls" | "ssl" | "none"
	from    mail.Address
}

var _ Transport = (*SMTPTransport)(nil)

func NewSMTPTransport(conf *core.Config) *SMTPTransport {
	return &SMTPTransport{
		host:    conf.Mail.Host,
		port:    conf.Mail.Port,
		user:    conf.Mail.Username,
		pass:    conf.Mail.Password,
		tlsMode: conf.Mail.TLSMode,
		from:    conf.DefaultFromEmail,
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

// CheckConfig verifies the settings and dials the server.
func (t *SMTPTransport) CheckConfig() error {
	if t.host == "" {
		return errors.New("mail host not set")
	}
	if t.port <= 0 {
		return errors.New("mail port not set")
	}
	sc, err := t.dialer().Dial()
	if err != nil {
		return errors.Wrapf(err, "dialing %s:%d", t.host, t.port)
	}
	return sc.Close()
}

func (t *SMTPTransport) Send(msg *core.EmailMessage) error {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from.String())
	m.SetHeader("To", addressHeaders(msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", addressHeaders(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", addressHeaders(msg.Bcc)...)
	}
	m.SetHeader("Subject", msg.Subject)

	// multipart/alternative: text/plain first, then text/html
	if msg.TextContent != "" {
		m.SetBody("text/plain", msg.TextContent)
	}
	if msg.HTMLContent != "" {
		if msg.TextContent == "" {
			m.SetBody("text/html", msg.HTMLContent)
		} else {
			m.AddAlternative("text/html", msg.HTMLContent)
		}
	}

	if err := t.dialer().DialAndSend(m); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}

func (t *SMTPTransport) dialer() *gomail.Dialer {
	d := gomail.NewDialer(t.host, t.port, t.user, t.pass)
	d.TLSConfig = &tls.Config{ServerName: t.host}
	switch t.tlsMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	default:
		// "auto"/"starttls": STARTTLS is negotiated when the server supports it
	}
	return d
}

func addressHeaders(addrs []mail.Address) []string {
	hdrs := make([]string, 0, len(addrs))
	for _, a := range addrs {
		hdrs = append(hdrs, a.String())
	}
	return hdrs
}

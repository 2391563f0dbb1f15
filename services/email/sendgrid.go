package emailsvc

import (
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/klabu/core"
)

var (
	sgHost     = "https://api.sendgrid.com"
	sgEndpoint = "/v3/mail/send"
)

// SendgridTransport delivers emails via the Sendgrid API.
type SendgridTransport struct {
	key  string
	from *sgmail.Email
}

var _ Transport = (*SendgridTransport)(nil)

func NewSendgridTransport(conf *core.Config) *SendgridTransport {
	return &SendgridTransport{
		key:  conf.SendgridApiKey,
		from: sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
	}
}

func (t *SendgridTransport) Name() string { return "sendgrid" }

func (t *SendgridTransport) CheckConfig() error {
	if t.key == "" {
		return errors.New("sendgrid API key not set")
	}
	return nil
}

func (t *SendgridTransport) Send(msg *core.EmailMessage) error {
	req := sendgrid.GetRequest(t.key, sgEndpoint, sgHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(t.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sendgrid API")
	}
	switch {
	case res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests:
		return errors.Errorf("sendgrid API - status: %d - body: %s", res.StatusCode, res.Body)
	case res.StatusCode >= http.StatusBadRequest:
		return Permanent(errors.Errorf("sendgrid API - status: %d - body: %s", res.StatusCode, res.Body))
	}
	return nil
}

func (t *SendgridTransport) prepare(msg *core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject

	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(t.from)
	m.AddPersonalizations(p)
	// the v3 API rejects empty content values; only add the parts we have
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

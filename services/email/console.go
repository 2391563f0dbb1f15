package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/klabu/core"
)

// ConsoleTransport writes emails to the log instead of delivering them.
// It is the DEV default.
type ConsoleTransport struct {
	defaultFromEmail mail.Address
	disableOutput    bool
}

var _ Transport = (*ConsoleTransport)(nil)

func NewConsoleTransport(conf *core.Config) *ConsoleTransport {
	return &ConsoleTransport{defaultFromEmail: conf.DefaultFromEmail}
}

func (t *ConsoleTransport) Name() string { return "console" }

func (t *ConsoleTransport) CheckConfig() error { return nil }

func (t *ConsoleTransport) Send(msg *core.EmailMessage) error {
	body := new(strings.Builder)

	_, _ = fmt.Fprintf(body, "From: %s\r\n", t.defaultFromEmail.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))

	altW := multipart.NewWriter(body)
	defer altW.Close()

	_, _ = fmt.Fprint(body, "Content-Type: multipart/alternative\r\n")
	_, _ = fmt.Fprintf(body, "Content-Type: boundary=%s\r\n", altW.Boundary())
	_, _ = fmt.Fprint(body, "\r\n")

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain"}})
	if err != nil {
		return errors.Wrap(err, "creating text/plain part")
	}
	_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.HTMLContent != "" {
		w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html"}})
		if err != nil {
			return errors.Wrap(err, "creating text/html part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}

	if !t.disableOutput {
		log.Println(body.String())
	}
	return nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// RecordingTransport records sent messages for inspection in tests.
type RecordingTransport struct {
	ConsoleTransport

	mu       sync.Mutex
	Messages []core.EmailMessage

	// SendErr, when set, decides the outcome of each Send.
	SendErr func(msg *core.EmailMessage) error
}

var _ Transport = (*RecordingTransport)(nil)

func NewRecordingTransport(conf *core.Config) *RecordingTransport {
	return &RecordingTransport{
		ConsoleTransport: ConsoleTransport{defaultFromEmail: conf.DefaultFromEmail, disableOutput: true},
	}
}

func (t *RecordingTransport) Name() string { return "recording" }

func (t *RecordingTransport) Send(msg *core.EmailMessage) error {
	if t.SendErr != nil {
		if err := t.SendErr(msg); err != nil {
			return err
		}
	}
	if err := t.ConsoleTransport.Send(msg); err != nil {
		return err
	}
	t.mu.Lock()
	t.Messages = append(t.Messages, *msg)
	t.mu.Unlock()
	return nil
}

func (t *RecordingTransport) SentMessages() []core.EmailMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := make([]core.EmailMessage, len(t.Messages))
	copy(msgs, t.Messages)
	return msgs
}

func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	t.Messages = nil
	t.mu.Unlock()
}

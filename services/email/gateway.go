package emailsvc

import (
	"fmt"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/pkg/errors"

	"github.com/trezcool/klabu/core"
)

// Transport delivers a rendered EmailMessage over a concrete backend.
type Transport interface {
	Name() string
	CheckConfig() error
	Send(msg *core.EmailMessage) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks a transport error as non-retryable.
func Permanent(err error) error { return permanentError{err} }

// isPermanent reports whether a transport error cannot be fixed by retrying.
// SMTP 5xx replies are permanent; network errors and 4xx replies are transient.
func isPermanent(err error) bool {
	var pErr permanentError
	if errors.As(err, &pErr) {
		return true
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code >= 500
	}
	return false
}

// Gateway implements core.EmailGateway on top of a Transport. Every send is
// retried up to maxRetries attempts with a fixed delay; permanent failures
// stop retrying immediately.
type Gateway struct {
	transport  Transport
	logger     core.Logger
	subjPrefix string
	batchSize  int
	maxRetries int
	retryDelay time.Duration
}

var _ core.EmailGateway = (*Gateway)(nil)

func NewGateway(transport Transport, conf *core.Config, logger core.Logger) *Gateway {
	return &Gateway{
		transport:  transport,
		logger:     logger,
		subjPrefix: "[" + conf.AppName + "] ",
		batchSize:  conf.Mail.BatchSize,
		maxRetries: conf.Mail.MaxRetries,
		retryDelay: conf.Mail.RetryDelay,
	}
}

func (g *Gateway) CheckConfig() error {
	if g.transport == nil {
		return errors.New("no mail transport configured")
	}
	if err := g.transport.CheckConfig(); err != nil {
		return errors.Wrapf(err, "%s transport", g.transport.Name())
	}
	return nil
}

func (g *Gateway) SendOne(recipient, subject, templateName string, data interface{}, plain string, failSilently bool) (bool, error) {
	// the failure reason is always returned; failSilently additionally logs it
	// here so fire-and-forget callers still leave a trace
	fail := func(err error) (bool, error) {
		if failSilently {
			g.logger.Error(fmt.Sprintf("sending %q email: %v", subject, err), err)
		}
		return false, err
	}

	if err := g.CheckConfig(); err != nil {
		return fail(err)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(recipient))
	if err != nil {
		return fail(errors.Wrapf(err, "invalid recipient %q", recipient))
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{*addr},
		Subject:      g.subjPrefix + subject,
		BodyStr:      plain,
		TemplateName: templateName,
		TemplateData: data,
	}
	if err = msg.Render(); err != nil {
		return fail(errors.Wrap(err, "rendering email"))
	}
	if !msg.HasContent() {
		return fail(errors.New("email has no content"))
	}
	if err = g.sendWithRetry(msg); err != nil {
		return fail(err)
	}
	return true, nil
}

func (g *Gateway) SendBatch(recipients []string, subject, templateName string, data interface{}, plain string, batchSize int) core.BatchResult {
	if batchSize <= 0 {
		batchSize = g.batchSize
	}

	addrs, invalid := cleanRecipients(recipients)
	res := core.BatchResult{Total: len(addrs) + len(invalid), Failed: len(invalid), Errors: invalid}

	if err := g.CheckConfig(); err != nil {
		res.Failed = res.Total
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	proto := core.EmailMessage{
		Subject:      g.subjPrefix + subject,
		BodyStr:      plain,
		TemplateName: templateName,
		TemplateData: data,
	}
	if err := proto.Render(); err != nil {
		res.Failed = res.Total
		res.Errors = append(res.Errors, errors.Wrap(err, "rendering email").Error())
		return res
	}

	for start := 0; start < len(addrs); start += batchSize {
		end := start + batchSize
		if end > len(addrs) {
			end = len(addrs)
		}
		for _, addr := range addrs[start:end] {
			msg := proto
			msg.To = []mail.Address{addr}
			if err := g.sendWithRetry(&msg); err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", addr.Address, err))
				continue
			}
			res.Successful++
		}
	}
	return res
}

func (g *Gateway) sendWithRetry(msg *core.EmailMessage) error {
	r := retry.NewRetrier(g.maxRetries, g.retryDelay, g.retryDelay)
	return r.Run(func() error {
		err := g.transport.Send(msg)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return retry.Stop(err)
		}
		return err
	})
}

// cleanRecipients validates and dedupes (case-insensitively) the given
// addresses. Invalid entries are returned as error strings.
func cleanRecipients(recipients []string) ([]mail.Address, []string) {
	addrs := make([]mail.Address, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	var invalid []string
	for _, r := range recipients {
		addr, err := mail.ParseAddress(strings.TrimSpace(r))
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("invalid recipient %q", r))
			continue
		}
		key := strings.ToLower(addr.Address)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		addrs = append(addrs, *addr)
	}
	return addrs, invalid
}

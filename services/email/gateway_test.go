package emailsvc

import (
	"net/mail"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/klabu/core"
)

func testConf() *core.Config {
	return &core.Config{
		TestMode:         true,
		AppName:          "Klabu",
		DefaultFromEmail: mail.Address{Name: "Klabu", Address: "noreply@localhost"},
		Mail:             core.MailConfig{BatchSize: 100, MaxRetries: 3, RetryDelay: time.Millisecond},
	}
}

type fakeTransport struct {
	mu       sync.Mutex
	attempts map[string]int
	sent     []string

	cfgErr error
	// errFor decides the outcome of an attempt for a recipient.
	errFor func(recipient string, attempt int) error
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{attempts: make(map[string]int)}
}

func (t *fakeTransport) Name() string       { return "fake" }
func (t *fakeTransport) CheckConfig() error { return t.cfgErr }

func (t *fakeTransport) Send(msg *core.EmailMessage) error {
	rcpt := msg.To[0].Address
	t.mu.Lock()
	t.attempts[rcpt]++
	n := t.attempts[rcpt]
	t.mu.Unlock()

	if t.errFor != nil {
		if err := t.errFor(rcpt, n); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.sent = append(t.sent, rcpt)
	t.mu.Unlock()
	return nil
}

func emails(n int) []string {
	rcpts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rcpts = append(rcpts, string(rune('a'+i%26))+string(rune('0'+i/26))+"@test.local")
	}
	return rcpts
}

func TestGatewaySendOne(t *testing.T) {
	conf := testConf()

	t.Run("successful send", func(t *testing.T) {
		transport := newFakeTransport()
		gw := NewGateway(transport, conf, core.NewNopLogger())

		sent, err := gw.SendOne("kito@test.local", "Hello", "", nil, "hi there", false)
		require.NoError(t, err)
		assert.True(t, sent)
		assert.Equal(t, []string{"kito@test.local"}, transport.sent)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		transport := newFakeTransport()
		gw := NewGateway(transport, conf, core.NewNopLogger())

		sent, err := gw.SendOne("not-an-email", "Hello", "", nil, "hi", false)
		require.Error(t, err)
		assert.False(t, sent)
		assert.Empty(t, transport.attempts)
	})

	t.Run("config error checked before transport is contacted", func(t *testing.T) {
		transport := newFakeTransport()
		transport.cfgErr = errors.New("host not set")
		gw := NewGateway(transport, conf, core.NewNopLogger())

		sent, err := gw.SendOne("kito@test.local", "Hello", "", nil, "hi", false)
		require.Error(t, err)
		assert.False(t, sent)
		assert.Empty(t, transport.attempts)
	})

	t.Run("failSilently still returns the failure reason", func(t *testing.T) {
		transport := newFakeTransport()
		transport.cfgErr = errors.New("host not set")
		gw := NewGateway(transport, conf, core.NewNopLogger())

		sent, err := gw.SendOne("kito@test.local", "Hello", "", nil, "hi", true)
		require.Error(t, err)
		assert.False(t, sent)
		assert.Contains(t, err.Error(), "host not set")
	})

	t.Run("transient failure is retried until success", func(t *testing.T) {
		transport := newFakeTransport()
		transport.errFor = func(rcpt string, attempt int) error {
			if attempt < 3 {
				return errors.New("connection reset")
			}
			return nil
		}
		gw := NewGateway(transport, conf, core.NewNopLogger())

		sent, err := gw.SendOne("kito@test.local", "Hello", "", nil, "hi", false)
		require.NoError(t, err)
		assert.True(t, sent)
		assert.Equal(t, 3, transport.attempts["kito@test.local"])
	})

	t.Run("transient failure gives up after max retries", func(t *testing.T) {
		transport := newFakeTransport()
		transport.errFor = func(rcpt string, attempt int) error {
			return errors.New("connection reset")
		}
		gw := NewGateway(transport, conf, core.NewNopLogger())

		sent, err := gw.SendOne("kito@test.local", "Hello", "", nil, "hi", false)
		require.Error(t, err)
		assert.False(t, sent)
		assert.Equal(t, conf.Mail.MaxRetries, transport.attempts["kito@test.local"])
	})

	t.Run("permanent failure is not retried", func(t *testing.T) {
		transport := newFakeTransport()
		transport.errFor = func(rcpt string, attempt int) error {
			return &textproto.Error{Code: 550, Msg: "mailbox unavailable"}
		}
		gw := NewGateway(transport, conf, core.NewNopLogger())

		sent, err := gw.SendOne("kito@test.local", "Hello", "", nil, "hi", false)
		require.Error(t, err)
		assert.False(t, sent)
		assert.Equal(t, 1, transport.attempts["kito@test.local"])
	})
}

func TestGatewaySendBatch(t *testing.T) {
	conf := testConf()

	t.Run("all successful in sequential batches", func(t *testing.T) {
		transport := newFakeTransport()
		gw := NewGateway(transport, conf, core.NewNopLogger())

		res := gw.SendBatch(emails(100), "News", "", nil, "big news", 40)
		assert.Equal(t, core.BatchResult{Total: 100, Successful: 100}, res)
		assert.Len(t, transport.sent, 100)
	})

	t.Run("permanent failures are counted, not retried", func(t *testing.T) {
		transport := newFakeTransport()
		rcpts := emails(100)
		bad := map[string]bool{rcpts[3]: true, rcpts[42]: true}
		transport.errFor = func(rcpt string, attempt int) error {
			if bad[rcpt] {
				return Permanent(errors.New("unknown recipient"))
			}
			return nil
		}
		gw := NewGateway(transport, conf, core.NewNopLogger())

		res := gw.SendBatch(rcpts, "News", "", nil, "big news", 0)
		assert.Equal(t, 100, res.Total)
		assert.Equal(t, 98, res.Successful)
		assert.Equal(t, 2, res.Failed)
		assert.Len(t, res.Errors, 2)
		for rcpt := range bad {
			assert.Equal(t, 1, transport.attempts[rcpt])
		}
	})

	t.Run("one failure never aborts the batch", func(t *testing.T) {
		transport := newFakeTransport()
		rcpts := emails(10)
		transport.errFor = func(rcpt string, attempt int) error {
			if rcpt == rcpts[0] {
				return Permanent(errors.New("unknown recipient"))
			}
			return nil
		}
		gw := NewGateway(transport, conf, core.NewNopLogger())

		res := gw.SendBatch(rcpts, "News", "", nil, "big news", 3)
		assert.Equal(t, 9, res.Successful)
		assert.Equal(t, 1, res.Failed)
		assert.Len(t, transport.sent, 9)
	})

	t.Run("recipients are deduped and validated", func(t *testing.T) {
		transport := newFakeTransport()
		gw := NewGateway(transport, conf, core.NewNopLogger())

		res := gw.SendBatch([]string{"kito@test.local", "KITO@test.local", "bogus"}, "News", "", nil, "big news", 0)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, 1, res.Successful)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, []string{"kito@test.local"}, transport.sent)
	})

	t.Run("config error fails everything without contacting the transport", func(t *testing.T) {
		transport := newFakeTransport()
		transport.cfgErr = errors.New("host not set")
		gw := NewGateway(transport, conf, core.NewNopLogger())

		res := gw.SendBatch(emails(5), "News", "", nil, "big news", 0)
		assert.Equal(t, 5, res.Total)
		assert.Equal(t, 0, res.Successful)
		assert.Equal(t, 5, res.Failed)
		assert.Empty(t, transport.attempts)
	})

	t.Run("total always equals successful plus failed", func(t *testing.T) {
		transport := newFakeTransport()
		rcpts := emails(20)
		transport.errFor = func(rcpt string, attempt int) error {
			if rcpt == rcpts[5] || rcpt == rcpts[15] {
				return Permanent(errors.New("boom"))
			}
			return nil
		}
		gw := NewGateway(transport, conf, core.NewNopLogger())

		res := gw.SendBatch(append(rcpts, "oops"), "News", "", nil, "big news", 7)
		assert.Equal(t, res.Total, res.Successful+res.Failed)
	})
}

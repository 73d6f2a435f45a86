package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

func TestResetLink(t *testing.T) {
	assert.Equal(t, "tok", ResetLink("", "tok"))
	assert.Equal(t, "https://app.example.com/reset?token=a%2Bb", ResetLink("https://app.example.com/reset", "a+b"))
	assert.Equal(t, "https://app.example.com/reset?lang=en&token=x", ResetLink("https://app.example.com/reset?lang=en", "x"))
}

func TestNewSMTPSenderValidates(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{From: "noreply@example.com"})
	assert.Error(t, err)

	_, err = NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 587, s.cfg.Port)
	assert.Equal(t, defaultTimeout, s.cfg.Timeout)
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{
		Host:         "smtp.example.com",
		Port:         2525,
		Username:     "user",
		Password:     "pass",
		From:         "noreply@example.com",
		ResetURLBase: "https://app.example.com/reset",
	})
	require.NoError(t, err)

	var (
		gotMsg      *gomail.Msg
		gotClient   *gomail.Client
		hadDeadline bool
	)
	s.deliver = func(ctx context.Context, c *gomail.Client, m *gomail.Msg) error {
		_, hadDeadline = ctx.Deadline()
		gotClient, gotMsg = c, m
		return nil
	}

	require.NoError(t, s.SendPasswordReset(context.Background(), "alice@example.com", "tok123", "Alice"))
	require.NotNil(t, gotClient)
	require.NotNil(t, gotMsg)
	assert.True(t, hadDeadline, "delivery must always run under a deadline")

	var buf bytes.Buffer
	_, err = gotMsg.WriteTo(&buf)
	require.NoError(t, err)
	msg := buf.String()
	assert.Contains(t, msg, "alice@example.com")
	assert.Contains(t, msg, "Subject: Reset your password")
	assert.Contains(t, msg, "Hello Alice,")
	assert.Contains(t, msg, "https://app.example.com/reset?token=tok123")
}

func TestSMTPSenderRejectsBadRecipient(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)

	called := false
	s.deliver = func(context.Context, *gomail.Client, *gomail.Msg) error {
		called = true
		return nil
	}

	assert.Error(t, s.SendPasswordReset(context.Background(), "not an address", "tok", ""))
	assert.Error(t, s.SendPasswordReset(context.Background(), "", "tok", ""))
	assert.False(t, called)
}

func TestSMTPSenderWrapsTransportError(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)

	boom := errors.New("connection refused")
	s.deliver = func(context.Context, *gomail.Client, *gomail.Msg) error { return boom }

	err = s.SendPasswordReset(context.Background(), "alice@example.com", "tok", "")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "smtp.example.com:587")
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)

	called := false
	s.deliver = func(context.Context, *gomail.Client, *gomail.Msg) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SendPasswordReset(ctx, "alice@example.com", "tok", ""), context.Canceled)
	assert.False(t, called)
}

// silentRelay accepts connections and never sends the SMTP greeting.
func silentRelay(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func TestSMTPSenderGivesUpOnSilentRelay(t *testing.T) {
	port := silentRelay(t)

	tests := []struct {
		name    string
		timeout time.Duration
		ctx     func() (context.Context, context.CancelFunc)
	}{
		{
			name:    "context deadline",
			timeout: time.Minute,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 100*time.Millisecond)
			},
		},
		{
			name:    "configured timeout",
			timeout: 150 * time.Millisecond,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithCancel(context.Background())
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSMTPSender(SMTPConfig{
				Host:    "127.0.0.1",
				Port:    port,
				From:    "noreply@example.com",
				Timeout: tc.timeout,
			})
			require.NoError(t, err)

			ctx, cancel := tc.ctx()
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- s.SendPasswordReset(ctx, "alice@example.com", "tok", "") }()

			select {
			case err := <-done:
				assert.Error(t, err)
			case <-time.After(3 * time.Second):
				t.Fatal("SendPasswordReset still blocked on a silent relay")
			}
		})
	}
}

func TestLogSenderWritesLink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	s := NewLogSender(logger, "http://localhost:3000/reset")
	require.NoError(t, s.SendPasswordReset(context.Background(), "bob@example.com", "abc", "Bob"))

	out := buf.String()
	assert.True(t, strings.Contains(out, `"to":"bob@example.com"`), out)
	assert.Contains(t, out, "http://localhost:3000/reset?token=abc")
}

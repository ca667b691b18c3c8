package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	from   string
	rcpts  []string
	data   bytes.Buffer
	authed bool
	quit   bool
	rcptFn func(string) error
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (c *recordingClient) Mail(from string) error { c.from = from; return nil }
func (c *recordingClient) Rcpt(to string) error {
	if c.rcptFn != nil {
		if err := c.rcptFn(to); err != nil {
			return err
		}
	}
	c.rcpts = append(c.rcpts, to)
	return nil
}
func (c *recordingClient) Data() (io.WriteCloser, error) { return nopWriteCloser{&c.data}, nil }
func (c *recordingClient) Quit() error                   { c.quit = true; return nil }
func (c *recordingClient) Close() error                  { return nil }
func (c *recordingClient) Auth(smtp.Auth) error          { c.authed = true; return nil }

func newTestMailer(t *testing.T, cfg SMTPSettings, client *recordingClient) *smtpMailer {
	t.Helper()
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)
	sm := m.(*smtpMailer)
	sm.clock = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	sm.dialFn = func(context.Context, SMTPSettings) (net.Conn, smtpClient, error) {
		local, remote := net.Pipe()
		t.Cleanup(func() { _ = remote.Close() })
		return local, client, nil
	}
	return sm
}

func enabledSettings() SMTPSettings {
	return SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587, From: "bookings@example.com"}
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"})
	require.ErrorContains(t, err, "port is required")

	m, err := NewSMTPMailer(SMTPSettings{})
	require.NoError(t, err)
	require.Equal(t, defaultSMTPTimeout, m.(*smtpMailer).cfg.Timeout)

	err = m.Send(context.Background(), Message{To: []string{"a@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSMTPMailerSendDeliversMessage(t *testing.T) {
	client := &recordingClient{}
	cfg := enabledSettings()
	cfg.Username = "mailer"
	m := newTestMailer(t, cfg, client)

	err := m.Send(context.Background(), Message{
		To:      []string{"alice@example.com", " ALICE@example.com ", "bob@example.com"},
		ReplyTo: "organiser@example.com",
		Subject: "Team offsite\r\nconfirmed",
		Body:    "See you there.\nBring snacks.",
	})
	require.NoError(t, err)

	require.True(t, client.authed)
	require.True(t, client.quit)
	require.Equal(t, "bookings@example.com", client.from)
	require.Equal(t, []string{"alice@example.com", "bob@example.com"}, client.rcpts)

	raw := client.data.String()
	require.Contains(t, raw, "From: bookings@example.com\r\n")
	require.Contains(t, raw, "To: alice@example.com, bob@example.com\r\n")
	require.Contains(t, raw, "Reply-To: organiser@example.com\r\n")
	require.Contains(t, raw, "Subject: Team offsite  confirmed\r\n")
	require.Contains(t, raw, "Date: Sat, 01 Mar 2025 09:00:00 +0000\r\n")
	require.Contains(t, raw, "@example.com>\r\n")
	require.True(t, strings.HasSuffix(raw, "See you there.\r\nBring snacks."))
}

func TestSMTPMailerSkipsAuthWithoutUsername(t *testing.T) {
	client := &recordingClient{}
	m := newTestMailer(t, enabledSettings(), client)

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"alice@example.com"}, Subject: "Hi"}))
	require.False(t, client.authed)
}

func TestSMTPMailerValidatesAddresses(t *testing.T) {
	m := newTestMailer(t, enabledSettings(), &recordingClient{})
	ctx := context.Background()

	err := m.Send(ctx, Message{To: []string{"   ", "\t"}})
	require.ErrorContains(t, err, "at least one recipient")

	err = m.Send(ctx, Message{To: []string{"user@example.com", "bad-address"}})
	require.ErrorContains(t, err, "invalid recipient address")

	err = m.Send(ctx, Message{From: "invalid-from", To: []string{"user@example.com"}})
	require.ErrorContains(t, err, "invalid from address")

	err = m.Send(ctx, Message{To: []string{"user@example.com"}, ReplyTo: "nope"})
	require.ErrorContains(t, err, "invalid reply-to")

	noSender := newTestMailer(t, SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 25}, &recordingClient{})
	err = noSender.Send(ctx, Message{To: []string{"user@example.com"}})
	require.ErrorContains(t, err, "sender address is required")
}

func TestSMTPMailerSurfacesRecipientRejection(t *testing.T) {
	client := &recordingClient{rcptFn: func(to string) error {
		if to == "gone@example.com" {
			return errors.New("550 mailbox unavailable")
		}
		return nil
	}}
	m := newTestMailer(t, enabledSettings(), client)

	err := m.Send(context.Background(), Message{To: []string{"alice@example.com", "gone@example.com"}})
	require.ErrorContains(t, err, "rcpt to gone@example.com")
	require.False(t, client.quit)
}

func TestEncodeHeader(t *testing.T) {
	require.Equal(t, "plain subject", encodeHeader("plain subject"))
	require.Equal(t, "Subject  Break", encodeHeader("Subject\r\nBreak"))
	require.True(t, strings.HasPrefix(encodeHeader("Café"), "=?utf-8?q?"))
}

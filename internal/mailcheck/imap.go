// Package mailcheck watches an IMAP mailbox for the confirmation message a
// board sends after a listing goes live.
package mailcheck

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/hashicorp/go-hclog"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	Wait     time.Duration
	Poll     time.Duration
}

// Message is the envelope subset matching needs.
type Message struct {
	UID     imap.UID
	From    string
	Subject string
	Date    time.Time
}

// Checker polls the mailbox until a matching unseen message arrives.
type Checker struct {
	cfg Config
	log hclog.Logger

	// fetch is swapped in tests.
	fetch func(ctx context.Context, since time.Time) ([]Message, error)
}

func New(cfg Config, log hclog.Logger) *Checker {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 15 * time.Second
	}
	c := &Checker{cfg: cfg, log: log.Named("mailcheck")}
	c.fetch = c.fetchUnseen
	return c
}

// AwaitConfirmation reports whether a message matching rule arrives within
// the configured wait. Messages dated before since are ignored.
func (c *Checker) AwaitConfirmation(ctx context.Context, rule domain.EmailRule, since time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Wait)
	defer cancel()

	t := time.NewTicker(c.cfg.Poll)
	defer t.Stop()

	for {
		msgs, err := c.fetch(ctx, since)
		if err != nil && ctx.Err() == nil {
			return false, err
		}
		for _, m := range msgs {
			if Matches(rule, m, since) {
				c.log.Debug("confirmation found", "from", m.From, "subject", m.Subject)
				return true, nil
			}
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return false, nil
			}
			return false, ctx.Err()
		case <-t.C:
		}
	}
}

// Matches applies rule to one message.
func Matches(rule domain.EmailRule, m Message, since time.Time) bool {
	if !m.Date.IsZero() && m.Date.Before(since.Add(-time.Minute)) {
		return false
	}
	if rule.FromContains != "" && !strings.Contains(strings.ToLower(m.From), strings.ToLower(rule.FromContains)) {
		return false
	}
	if len(rule.SubjectAny) == 0 {
		return rule.FromContains != ""
	}
	subj := strings.ToLower(m.Subject)
	for _, s := range rule.SubjectAny {
		if s != "" && strings.Contains(subj, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func (c *Checker) dial() (*imapclient.Client, error) {
	if c.cfg.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	port := c.cfg.Port
	if port == 0 {
		port = 993
	}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(port))

	cl, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: c.cfg.Host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	if err := cl.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return cl, nil
}

// fetchUnseen opens a short-lived read-only session and returns unseen
// envelopes received since the given time.
func (c *Checker) fetchUnseen(ctx context.Context, since time.Time) ([]Message, error) {
	cl, err := c.dial()
	if err != nil {
		return nil, err
	}
	// Best-effort close on context cancel.
	stop := context.AfterFunc(ctx, func() { _ = cl.Close() })
	defer stop()
	defer func() {
		if err := cl.Logout().Wait(); err != nil {
			c.log.Debug("imap logout", "error", err)
		}
		_ = cl.Close()
	}()

	if _, err := cl.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", c.cfg.Mailbox, err)
	}

	// SINCE has day granularity; Matches filters precisely.
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   since.Truncate(24 * time.Hour),
	}
	searchData, err := cl.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	fetchCmd := cl.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
	})
	defer func() { _ = fetchCmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		m := Message{UID: buf.UID, Date: buf.InternalDate}
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			m.From = joinAddrs(buf.Envelope.From)
			if !buf.Envelope.Date.IsZero() {
				m.Date = buf.Envelope.Date
			}
		}
		out = append(out, m)
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func joinAddrs(addrs []imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for i := range addrs {
		a := &addrs[i]
		addr := strings.TrimSpace(a.Addr())
		if addr == "" {
			addr = strings.TrimSpace(a.Name)
		}
		if addr != "" {
			parts = append(parts, addr)
		}
	}
	return strings.Join(parts, ", ")
}

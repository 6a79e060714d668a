package sections

import (
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/core/record"
)

// CanceledTokens remembers delegation tokens revoked before their expiry.
//
// Section lines:
//
//	delegatecancel/token/<uid.seq.keyid.issued.validfor.signature>
//	delegatecancel/end
type CanceledTokens struct {
	mu       sync.Mutex
	canceled map[string]domain.DelegationToken
}

// NewCanceledTokens creates an empty log.
func NewCanceledTokens() *CanceledTokens {
	return &CanceledTokens{canceled: make(map[string]domain.DelegationToken)}
}

func (c *CanceledTokens) Name() string { return "delegatecancel" }

// Cancel records tok as canceled.
func (c *CanceledTokens) Cancel(tok domain.DelegationToken) {
	c.mu.Lock()
	c.canceled[tok.String()] = tok
	c.mu.Unlock()
}

// IsCanceled reports whether tok was canceled.
func (c *CanceledTokens) IsCanceled(tok domain.DelegationToken) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.canceled[tok.String()]
	return ok
}

// Expire drops tokens that expired at or before now and returns how many
// were dropped.
func (c *CanceledTokens) Expire(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, tok := range c.canceled {
		if tok.Expires() <= now.Unix() {
			delete(c.canceled, k)
			n++
		}
	}
	return n
}

// Len returns the number of canceled tokens.
func (c *CanceledTokens) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.canceled)
}

// Tokens returns the canceled tokens in text order.
func (c *CanceledTokens) Tokens() []domain.DelegationToken {
	c.mu.Lock()
	keys := make([]string, 0, len(c.canceled))
	for k := range c.canceled {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]domain.DelegationToken, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.canceled[k])
	}
	c.mu.Unlock()
	return out
}

// Snapshot returns a deep copy.
func (c *CanceledTokens) Snapshot() *CanceledTokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := NewCanceledTokens()
	for k, v := range c.canceled {
		cp.canceled[k] = v
	}
	return cp
}

func (c *CanceledTokens) WriteSection(w io.Writer) error {
	toks := c.Tokens()
	lines := make([]string, 0, len(toks))
	for _, tok := range toks {
		lines = append(lines, record.NewBuilder(c.Name()).KV("token", tok.String()).Line())
	}
	return writeLines(w, c.Name(), lines)
}

func (c *CanceledTokens) ReplaySection(r *LineReader) error {
	return replayLines(r, c.Name(), func(f *record.Fields) error {
		s := f.KStr("token")
		if f.Err() != nil {
			return nil
		}
		tok, err := domain.ParseDelegationToken(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		c.Cancel(tok)
		return nil
	})
}

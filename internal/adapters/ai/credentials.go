package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Credential holds the provider API key read once at startup.
// Every formatting path prints the masked form; only Reveal returns the key.
type Credential struct {
	key            string
	loadedAt       time.Time
	rotationPeriod time.Duration
	lastUsed       atomic.Int64
}

// NewCredential wraps key; rotationPeriod <= 0 disables rotation warnings.
func NewCredential(key string, rotationPeriod time.Duration) *Credential {
	return &Credential{
		key:            strings.TrimSpace(key),
		loadedAt:       time.Now(),
		rotationPeriod: rotationPeriod,
	}
}

// Empty reports whether no key was configured.
func (c *Credential) Empty() bool {
	return c == nil || c.key == ""
}

// Reveal returns the raw key for the provider client.
func (c *Credential) Reveal() string {
	if c == nil {
		return ""
	}
	return c.key
}

// Masked returns the key with all but the last four characters hidden.
func (c *Credential) Masked() string {
	if c.Empty() {
		return "<unset>"
	}
	if len(c.key) <= 8 {
		return "****"
	}
	return "****" + c.key[len(c.key)-4:]
}

func (c *Credential) String() string {
	return c.Masked()
}

// Format keeps %v, %+v, %#v and %s from printing the key.
func (c *Credential) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(c.Masked()))
}

// MarshalJSON emits the masked key.
func (c *Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Masked())
}

// MarkUsed records a request made with the key.
func (c *Credential) MarkUsed(at time.Time) {
	c.lastUsed.Store(at.UnixNano())
}

// LastUsed returns when the key was last used, zero if never.
func (c *Credential) LastUsed() time.Time {
	ns := c.lastUsed.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Age is the time since the key was loaded.
func (c *Credential) Age(now time.Time) time.Duration {
	return now.Sub(c.loadedAt)
}

// RotationPeriod returns the configured rotation interval.
func (c *Credential) RotationPeriod() time.Duration {
	return c.rotationPeriod
}

// NeedsRotation reports whether the key has been in use longer than the rotation period.
func (c *Credential) NeedsRotation(now time.Time) bool {
	if c.Empty() || c.rotationPeriod <= 0 {
		return false
	}
	return c.Age(now) >= c.rotationPeriod
}

package credentials

import (
	"context"
	"time"

	"codeagents/internal/workers"
	"codeagents/pkg/errors"
)

// RotatingCredential is the view of an API key the monitor needs
type RotatingCredential interface {
	NeedsRotation(now time.Time) bool
	Age(now time.Time) time.Duration
	RotationPeriod() time.Duration
	Masked() string
}

// RotationMonitor warns when the API key has outlived its rotation period.
// The tracker is notified once per process; the log warning repeats every run.
type RotationMonitor struct {
	*workers.BaseWorker
	credential RotatingCredential
	tracker    errors.Tracker
	now        func() time.Time
	reported   bool
}

// NewRotationMonitor creates the monitor. tracker may be nil.
func NewRotationMonitor(credential RotatingCredential, tracker errors.Tracker, interval time.Duration) *RotationMonitor {
	return &RotationMonitor{
		BaseWorker: workers.NewBaseWorker("credential_rotation_monitor", interval, credential.RotationPeriod() > 0),
		credential: credential,
		tracker:    tracker,
		now:        time.Now,
	}
}

func (m *RotationMonitor) Run(ctx context.Context) error {
	now := m.now()
	if !m.credential.NeedsRotation(now) {
		return nil
	}

	age := m.credential.Age(now).Round(time.Minute)
	m.Log().Warnw("API key is due for rotation",
		"key", m.credential.Masked(),
		"age", age,
		"rotation_period", m.credential.RotationPeriod(),
	)

	if m.tracker == nil || m.reported {
		return nil
	}
	m.reported = true

	return m.tracker.CaptureMessage(ctx, "API key is due for rotation", errors.LevelWarning, map[string]string{
		"key": m.credential.Masked(),
		"age": age.String(),
	})
}

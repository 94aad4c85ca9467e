package testsupport

import (
	"context"
	"sync"

	"codeagents/pkg/errors"
)

// RecordingTracker is an errors.Tracker that keeps everything it receives.
type RecordingTracker struct {
	mu          sync.Mutex
	errors      []error
	messages    []string
	breadcrumbs []string
}

// NewRecordingTracker creates an empty tracker
func NewRecordingTracker() *RecordingTracker {
	return &RecordingTracker{}
}

func (r *RecordingTracker) CaptureError(_ context.Context, err error, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	return nil
}

func (r *RecordingTracker) CaptureMessage(_ context.Context, message string, _ errors.Level, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *RecordingTracker) AddBreadcrumb(_ context.Context, message string, _ string, _ errors.Level, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breadcrumbs = append(r.breadcrumbs, message)
}

func (r *RecordingTracker) Flush(context.Context) error {
	return nil
}

// Errors returns a copy of the captured errors
func (r *RecordingTracker) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// Messages returns a copy of the captured messages
func (r *RecordingTracker) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

package vars

import (
	"fmt"

	"github.com/google/uuid"
)

// Trace collects notable events during a consolidation run: loaded files,
// empty scopes, skipped environments, resolution pass counts. It is purely
// diagnostic; correctness never depends on it. A nil *Trace discards all
// notes.
type Trace struct {
	// RunID identifies one consolidation run in diagnostic output.
	RunID string

	notes []string
}

// NewTrace creates a trace with a fresh run ID.
func NewTrace() *Trace {
	return &Trace{RunID: uuid.NewString()}
}

// Logf appends a formatted note. Safe on a nil trace.
func (t *Trace) Logf(format string, args ...any) {
	if t == nil {
		return
	}
	t.notes = append(t.notes, fmt.Sprintf(format, args...))
}

// Notes returns the collected notes in order.
func (t *Trace) Notes() []string {
	if t == nil {
		return nil
	}
	return t.notes
}

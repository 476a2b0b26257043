package job

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a job
type State string

const (
	Constructed State = "constructed"
	Prepared    State = "prepared"
	Committed   State = "committed"
	Failed      State = "failed"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == Committed || s == Failed
}

// CanTransition reports whether a job may move from one state to another.
// Committed is only reachable from Prepared; Failed from any live state.
func CanTransition(from, to State) bool {
	switch to {
	case Prepared:
		return from == Constructed
	case Committed:
		return from == Prepared
	case Failed:
		return !from.Terminal()
	}
	return false
}

// Record is the observable history of one job
type Record struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Summary   string    `json:"summary"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord starts a record in the Constructed state
func NewRecord(id string, j Job) *Record {
	now := time.Now()
	return &Record{
		ID:        id,
		Kind:      j.Kind(),
		Summary:   j.Summary(),
		State:     Constructed,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the record to a new state, refusing illegal transitions
func (r *Record) Advance(to State) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("illegal job transition %s -> %s", r.State, to)
	}
	r.State = to
	r.UpdatedAt = time.Now()
	return nil
}

// Fail moves the record to Failed and keeps the error message verbatim
func (r *Record) Fail(err error, kind string) {
	if r.State.Terminal() {
		return
	}
	r.State = Failed
	r.Error = err.Error()
	r.ErrorKind = kind
	r.UpdatedAt = time.Now()
}

// Package breaker implements per-agent circuit breakers.
//
// A breaker tracks consecutive failures of one agent's upstream source
// across all concurrent jobs. While open, dispatch short-circuits that
// agent straight to its fallback path instead of attempting a live call.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker state.
type State string

const (
	// StateClosed means live calls pass through.
	StateClosed State = "closed"

	// StateOpen means live calls are suppressed until the open deadline.
	StateOpen State = "open"

	// StateHalfOpen means one trial live call is allowed.
	StateHalfOpen State = "half_open"
)

// Breaker is the failure tracker for a single agent. One instance per
// agent, shared across jobs; all reads and transitions happen under the
// breaker's own mutex.
type Breaker struct {
	mu sync.Mutex

	name            string
	threshold       int
	openDuration    time.Duration
	maxOpenDuration time.Duration

	state           State
	failures        int
	currentOpen     time.Duration
	openUntil       time.Time
	lastTransition  time.Time
	trialInFlight   bool

	now func() time.Time
}

// New creates a closed breaker for the named agent.
func New(name string, threshold int, openDuration, maxOpenDuration time.Duration) *Breaker {
	return &Breaker{
		name:            name,
		threshold:       threshold,
		openDuration:    openDuration,
		maxOpenDuration: maxOpenDuration,
		state:           StateClosed,
		currentOpen:     openDuration,
		lastTransition:  time.Now(),
		now:             time.Now,
	}
}

// Allow reports whether a live call may be attempted now. When an open
// breaker's deadline has elapsed, the first Allow transitions it to
// half-open and admits a single trial call; concurrent callers are
// refused until that trial settles.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return false
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// RecordSuccess notes a successful live call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trialInFlight = false
	if b.state != StateClosed {
		b.currentOpen = b.openDuration
		b.transition(StateClosed)
	}
}

// RecordFailure notes a failed live call. In the closed state the
// consecutive-failure counter advances and opens the breaker at the
// threshold; a failed half-open trial reopens with doubled (capped)
// open duration.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.open()
		}
	case StateHalfOpen:
		b.trialInFlight = false
		b.failures++
		b.currentOpen = min(2*b.currentOpen, b.maxOpenDuration)
		b.open()
	case StateOpen:
		// late failure from a call dispatched before the breaker opened
		b.failures++
	}
}

// RecordNonCounting settles a live call whose failure carries no
// signal about upstream health (invalid input, internal faults). The
// failure counter is untouched; a half-open trial slot is released so
// the next live call becomes the real trial instead of the breaker
// wedging with the slot held forever.
func (b *Breaker) RecordNonCounting() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialInFlight = false
}

// State returns the current state, accounting for an elapsed open deadline.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) open() {
	b.openUntil = b.now().Add(b.currentOpen)
	b.transition(StateOpen)
}

func (b *Breaker) transition(s State) {
	b.state = s
	b.lastTransition = b.now()
}

// Snapshot is a read-only view of a breaker for diagnostics.
type Snapshot struct {
	Agent               string    `json:"agent"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenUntil           time.Time `json:"open_until,omitempty"`
	LastTransition      time.Time `json:"last_transition"`
}

// Snapshot returns the breaker's current view.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Agent:               b.name,
		State:               b.state,
		ConsecutiveFailures: b.failures,
		OpenUntil:           b.openUntil,
		LastTransition:      b.lastTransition,
	}
}

// Table holds one breaker per agent, created lazily with shared settings.
type Table struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker

	threshold       int
	openDuration    time.Duration
	maxOpenDuration time.Duration
}

// NewTable creates a breaker table.
func NewTable(threshold int, openDuration, maxOpenDuration time.Duration) *Table {
	return &Table{
		breakers:        make(map[string]*Breaker),
		threshold:       threshold,
		openDuration:    openDuration,
		maxOpenDuration: maxOpenDuration,
	}
}

// Get returns the breaker for the named agent, creating it if needed.
func (t *Table) Get(name string) *Breaker {
	t.mu.RLock()
	b, ok := t.breakers[name]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.breakers[name]; ok {
		return b
	}
	b = New(name, t.threshold, t.openDuration, t.maxOpenDuration)
	t.breakers[name] = b
	return b
}

// Snapshots returns a view of every breaker in the table.
func (t *Table) Snapshots() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(t.breakers))
	for _, b := range t.breakers {
		snaps = append(snaps, b.Snapshot())
	}
	return snaps
}

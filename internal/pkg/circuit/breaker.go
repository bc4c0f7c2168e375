// Package circuit stops calling a failing upstream for a cooldown period.
package circuit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/minyeamer/gspread/internal/logger"
)

// ErrOpen matches every rejection made while the breaker is open.
var ErrOpen = errors.New("circuit open")

// OpenError reports when the breaker will let the next probe through.
type OpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit %s open until %s", e.Name, e.RetryAt.Format(time.RFC3339))
}

func (e *OpenError) Is(target error) bool { return target == ErrOpen }

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker opens after threshold consecutive tripping failures. Once the
// cooldown has passed a single caller probes the upstream while the
// others keep getting rejected.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New returns nil when threshold <= 0; a nil breaker admits every call.
func New(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		return nil
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker rejects it. trip decides which errors count
// against the upstream; nil trip counts every error.
func (b *Breaker) Do(fn func() error, trip func(error) bool) error {
	if b == nil {
		return fn()
	}
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err != nil && (trip == nil || trip(err)))
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return b.rejection()
		}
		b.moveTo(StateHalfOpen)
		b.probing = true
		return nil
	default:
		if b.probing {
			return b.rejection()
		}
		b.probing = true
		return nil
	}
}

func (b *Breaker) settle(tripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if !tripped {
		b.failures = 0
		if b.state != StateClosed {
			b.moveTo(StateClosed)
		}
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		if b.state != StateOpen {
			b.moveTo(StateOpen)
		}
	}
}

func (b *Breaker) rejection() error {
	return &OpenError{Name: b.name, RetryAt: b.openedAt.Add(b.cooldown)}
}

func (b *Breaker) moveTo(to State) {
	logger.Warnf("circuit %s: %s -> %s (failures=%d/%d)", b.name, b.state, to, b.failures, b.threshold)
	b.state = to
}

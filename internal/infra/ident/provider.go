// internal/infra/ident/provider.go
package ident

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// isoFormat is ISO-8601 with fixed-width milliseconds, so timestamps sort
// correctly as plain text on every backend.
const isoFormat = "2006-01-02T15:04:05.000Z07:00"

// Provider hands out the identifiers and timestamps the domain consumes when
// creating entities. Kept behind an interface so tests can pin both.
type Provider interface {
	NewID() string
	Now() string
}

// System is the production provider: random UUIDs and UTC wall-clock time.
type System struct{}

func NewSystem() *System { return &System{} }

func (*System) NewID() string { return uuid.NewString() }

func (*System) Now() string { return time.Now().UTC().Format(isoFormat) }

// Sequence is a deterministic provider for tests: counting IDs and a clock
// that advances one second per Now call.
type Sequence struct {
	mu   sync.Mutex
	n    int
	base time.Time
}

func NewSequence(base time.Time) *Sequence {
	return &Sequence{base: base.UTC()}
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%06d", s.n)
}

func (s *Sequence) Now() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.base.Add(time.Duration(s.n) * time.Second).Format(isoFormat)
}

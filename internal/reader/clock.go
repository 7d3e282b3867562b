package reader

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Clock stamps provenance. Next yields the sequence number that orders
// writes within a record; Now yields the wall clock timestamp.
type Clock interface {
	Now() time.Time
	Next() int64
}

// LogicalClock is a monotonic sequence paired with the system clock. It
// is safe for concurrent use.
type LogicalClock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *LogicalClock {
	return &LogicalClock{}
}

// NewClockAt returns a clock resuming after seq, e.g. when a stored record
// is edited again.
func NewClockAt(seq int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(seq)
	return c
}

func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, without advancing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}

func (c *LogicalClock) Now() time.Time {
	return time.Now().UTC()
}

// IDGenerator produces identifiers for the uuid default producer.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 strings.
type UUIDv7Generator struct{}

func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

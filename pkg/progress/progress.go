// Package progress carries one-way progress events from the engine to
// whichever front end is listening. Producers never block on consumers.
package progress

import (
	"sync"
	"time"
)

// Kind identifies a progress event.
type Kind string

const (
	MainStart  Kind = "main-start"
	MainUpdate Kind = "main-update"
	MainEnd    Kind = "main-end"
	SubStart   Kind = "sub-start"
	SubUpdate  Kind = "sub-update"
	SubEnd     Kind = "sub-end"
	Message    Kind = "update-message"
	Complete   Kind = "on-complete"
)

// Unit says how a sub progress length should be displayed.
type Unit string

const (
	UnitItems Unit = "items"
	UnitBytes Unit = "bytes"
)

// Event is a single progress notification. Length is zero when the total
// is unknown; front ends show a spinner then.
type Event struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message,omitempty"`
	Length  int64     `json:"length,omitempty"`
	Delta   int64     `json:"delta,omitempty"`
	Unit    Unit      `json:"unit,omitempty"`
	Time    time.Time `json:"time"`
}

// Reporter receives events. Implementations must not block.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

// Channel is an unbounded queue between a single producer and a consumer.
// Report appends and returns immediately; a pump goroutine forwards events
// to Events() in order. Close flushes what is queued and then closes the
// output channel.
type Channel struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	out    chan Event
	done   chan struct{}
}

// NewChannel starts the pump.
func NewChannel() *Channel {
	c := &Channel{
		out:  make(chan Event),
		done: make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	go c.pump()
	return c
}

func (c *Channel) pump() {
	defer close(c.done)
	defer close(c.out)
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		e := c.queue[0]
		c.queue[0] = Event{}
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.out <- e
	}
}

// Report enqueues e. Events reported after Close are dropped.
func (c *Channel) Report(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.queue = append(c.queue, e)
	c.cond.Signal()
}

// Events is the consumer side.
func (c *Channel) Events() <-chan Event {
	return c.out
}

// Pending returns how many events are queued but not yet delivered.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close stops accepting events. The consumer still receives everything
// queued before Close.
func (c *Channel) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// Wait blocks until the consumer has drained the channel after Close.
func (c *Channel) Wait() {
	<-c.done
}

// Fanout forwards every event to all reporters.
type Fanout []Reporter

func (f Fanout) Report(e Event) {
	for _, r := range f {
		if r != nil {
			r.Report(e)
		}
	}
}

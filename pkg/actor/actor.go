// Package actor implements the cooperative, single-goroutine-per-actor
// scheduling model every stateful subsystem (the database actor, the
// replicator, its Pusher and Puller) runs on: each Actor owns a mailbox
// and exactly one dedicated goroutine draining it FIFO, so at most one
// message per actor executes at a time and actors never block on a lock
// held by another actor.
package actor

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/cuemby/veyradb/pkg/log"
)

// ActivityLevel reports what an Actor is currently doing, propagated to
// its Delegate on every transition.
type ActivityLevel int

const (
	Stopped ActivityLevel = iota
	Idle
	Connecting
	Busy
)

func (l ActivityLevel) String() string {
	switch l {
	case Stopped:
		return "Stopped"
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Busy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// Delegate is notified of an actor's activity-level transitions and of
// any panic raised while handling a message. A panicking handler is
// recovered and reported through ActorFailed; the actor keeps draining its
// mailbox and its activity level is not set to Stopped.
type Delegate interface {
	ActivityLevelChanged(a *Actor, level ActivityLevel)
	ActorFailed(a *Actor, err error)
}

// message is a posted closure plus the sender-ordering tag FIFO delivery
// is defined against: messages from the same sender are never reordered
// relative to each other, though messages from different senders may
// interleave (mirrors the BLIP-layer ordering guarantee one level up).
type message struct {
	fn     func()
	sender string
}

// Actor is a single mailbox and its dedicated goroutine. The zero value
// is not usable; construct with New.
type Actor struct {
	name     string
	mailbox  chan message
	delegate Delegate
	refCount atomic.Int32

	level atomic.Int32 // ActivityLevel, accessed only via setLevel/Level
	done  chan struct{}
}

// New creates an Actor with the given name (used in logging) and an
// optional Delegate (nil is fine — transitions are just not reported
// anywhere). The actor starts with one implicit reference, matching
// RefCounted's construction-time refcount of 1; the owner must call
// Release when done with it.
func New(name string, delegate Delegate, mailboxSize int) *Actor {
	a := &Actor{
		name:     name,
		mailbox:  make(chan message, mailboxSize),
		delegate: delegate,
		done:     make(chan struct{}),
	}
	a.refCount.Store(1)
	a.setLevel(Idle)
	go a.run()
	return a
}

// Retain increments the reference count. Pair every Retain with exactly
// one Release.
func (a *Actor) Retain() {
	a.refCount.Add(1)
}

// Release decrements the reference count; at zero it stops the actor's
// goroutine and transitions to Stopped. Calling Release more times than
// Retain (plus the implicit construction reference) is a caller bug and
// panics, the same way an over-released RefCounted would double-free.
func (a *Actor) Release() {
	n := a.refCount.Add(-1)
	if n < 0 {
		panic("actor: Release called more times than Retain")
	}
	if n == 0 {
		close(a.mailbox)
	}
}

// RefCount reports the current reference count, for diagnostics.
func (a *Actor) RefCount() int32 { return a.refCount.Load() }

// Enqueue posts fn to the actor's mailbox; fn runs on the actor's own
// goroutine once every earlier message from the same sender has run.
// Enqueue never blocks longer than the channel send (the mailbox is
// buffered); a full mailbox blocks the caller until space frees up,
// exactly as posting to a bounded queue should.
func (a *Actor) Enqueue(sender string, fn func()) {
	defer func() {
		// The mailbox may already be closed if the actor was released
		// concurrently; a post-shutdown enqueue is dropped rather than
		// panicking the caller.
		recover()
	}()
	a.mailbox <- message{fn: fn, sender: sender}
}

// Level returns the actor's current ActivityLevel.
func (a *Actor) Level() ActivityLevel {
	return ActivityLevel(a.level.Load())
}

func (a *Actor) setLevel(level ActivityLevel) {
	if ActivityLevel(a.level.Swap(int32(level))) == level {
		return
	}
	if a.delegate != nil {
		a.delegate.ActivityLevelChanged(a, level)
	}
}

// Name returns the actor's diagnostic name.
func (a *Actor) Name() string { return a.name }

// Done returns a channel closed once the actor's goroutine has exited.
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) run() {
	logger := log.WithDomain(log.DomainActor)
	defer close(a.done)
	defer a.setLevel(Stopped)

	for msg := range a.mailbox {
		a.setLevel(Busy)
		a.runOne(logger, msg)
		if len(a.mailbox) == 0 {
			a.setLevel(Idle)
		}
	}
}

func (a *Actor) runOne(logger zerolog.Logger, msg message) {
	defer func() {
		if r := recover(); r != nil {
			err := &panicError{value: r}
			logger.Error().Str("actor", a.name).Str("sender", msg.sender).
				Msg("actor message handler panicked: " + err.Error())
			if a.delegate != nil {
				a.delegate.ActorFailed(a, err)
			}
		}
	}()
	msg.fn()
}

// panicError adapts a recovered panic value to the error interface so it
// can travel through Delegate.ActorFailed like any other failure.
type panicError struct{ value any }

func (e *panicError) Error() string {
	if err, ok := e.value.(error); ok {
		return err.Error()
	}
	return "actor panic: " + toString(e.value)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown"
}

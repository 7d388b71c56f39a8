// Package replicator implements peer-to-peer document sync over a BLIP
// connection: a Pusher that streams local changes outward, a Puller that
// requests and installs remote ones, and a checkpoint that lets either
// side resume where it left off. All access to the shared Database goes
// through a single actor so the Pusher's and Puller's goroutines never
// race each other inside it (§4.8).
package replicator

import (
	"github.com/cuemby/veyradb/pkg/actor"
	"github.com/cuemby/veyradb/pkg/blip"
	"github.com/cuemby/veyradb/pkg/database"
	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/log"
	"github.com/cuemby/veyradb/pkg/types"
)

// Direction selects one side (push or pull) of a replication.
type Direction int

const (
	Disabled Direction = iota
	Passive             // started by Start the same way as OneShot; it does not wait for the peer to initiate
	OneShot             // run until caught up, then stop
	Continuous          // keep running, waiting for new changes
)

// Options configures a Replicator.
type Options struct {
	Push        Direction
	Pull        Direction
	RemoteURL   string // identifies the peer for checkpoint lookup
	BatchSize   int    // changes per "changes" message; 0 uses the default of 500
	MaxInFlight int    // unacknowledged "rev" messages the pusher allows outstanding; 0 uses 10
}

// Delegate is notified of a replication's activity-level transitions and
// of a DBActor failure, which it receives as an unclean close. Stop does
// not call ReplicatorClosed.
type Delegate interface {
	ReplicatorActivityChanged(r *Replicator, level actor.ActivityLevel)
	ReplicatorClosed(r *Replicator, reason types.CloseReason)
}

// Replicator owns one BLIP connection and the Pusher/Puller pair driving
// it, plus the checkpoint record tracking how far each has gotten.
type Replicator struct {
	db       *database.Database
	conn     *blip.Connection
	opts     Options
	delegate Delegate

	dbActor *actor.Actor
	pusher  *Pusher
	puller  *Puller
}

const (
	defaultBatchSize   = 500
	defaultMaxInFlight = 10
)

// New builds a Replicator over an already-connected BLIP connection. It
// does not start replicating until Start is called.
func New(db *database.Database, conn *blip.Connection, opts Options, delegate Delegate) *Replicator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	r := &Replicator{db: db, conn: conn, opts: opts, delegate: delegate}
	r.dbActor = actor.New("DBActor", r, 64)
	return r
}

// ActivityLevelChanged implements actor.Delegate for the embedded
// DBActor, relaying its transitions to the replicator's own Delegate.
func (r *Replicator) ActivityLevelChanged(a *actor.Actor, level actor.ActivityLevel) {
	if r.delegate != nil {
		r.delegate.ReplicatorActivityChanged(r, level)
	}
}

// ActorFailed implements actor.Delegate, reporting a DBActor message
// panic as an unclean close rather than letting it vanish silently.
func (r *Replicator) ActorFailed(a *actor.Actor, err error) {
	log.WithReplicator(r.opts.RemoteURL).Error().Err(err).Msg("replicator db actor failed")
	if r.delegate != nil {
		r.delegate.ReplicatorClosed(r, types.CloseReason{
			Kind:    types.ClosePOSIX,
			Message: err.Error(),
		})
	}
}

// runOnDBActor posts fn to the DBActor's mailbox and blocks for its
// result, giving Pusher and Puller a synchronous call into the database
// that is nonetheless serialized against each other.
func (r *Replicator) runOnDBActor(sender string, fn func() *dberr.Error) *dberr.Error {
	done := make(chan *dberr.Error, 1)
	r.dbActor.Enqueue(sender, func() {
		done <- fn()
	})
	return <-done
}

// Start loads the checkpoint for this peer and launches whichever of the
// Pusher/Puller the Options enabled.
func (r *Replicator) Start() *dberr.Error {
	cp, derr := loadCheckpoint(r.db, r.opts.RemoteURL)
	if derr != nil {
		return derr
	}

	if r.opts.Pull != Disabled {
		r.puller = newPuller(r, r.opts.Pull == Continuous)
		r.conn.HandleProfile("changes", r.puller.handleChanges)
		r.conn.HandleProfile("rev", r.puller.handleRev)
		if derr := r.puller.start(cp.LastPulledSequence); derr != nil {
			return derr
		}
	}

	if r.opts.Push != Disabled {
		r.pusher = newPusher(r, r.opts.Push == Continuous)
		// The peer's Puller.start sends subChanges with NoReply; this side's
		// Pusher already runs unconditionally once enabled. The handler only
		// claims the profile: no response goes back for a NoReply request,
		// with or without it.
		r.conn.HandleProfile("subChanges", func(req *blip.Message) *blip.Message {
			return blip.NewResponse(nil, nil)
		})
		r.pusher.start(cp.LastPushedSequence)
	}

	return nil
}

// Stop tears down the Pusher's background goroutine and releases the
// DBActor. It does not close the underlying BLIP connection or socket,
// which the caller (the owner of the transport) manages.
func (r *Replicator) Stop() {
	if r.pusher != nil {
		r.pusher.stop()
	}
	r.dbActor.Release()
}

// saveCheckpoint persists the current cursor pair, run on the DBActor so
// it never races a concurrent Pusher/Puller advance.
func (r *Replicator) saveCheckpoint(pushed, pulled uint64) *dberr.Error {
	return r.runOnDBActor("checkpoint", func() *dberr.Error {
		cp, derr := loadCheckpoint(r.db, r.opts.RemoteURL)
		if derr != nil {
			return derr
		}
		if pushed > cp.LastPushedSequence {
			cp.LastPushedSequence = pushed
		}
		if pulled > cp.LastPulledSequence {
			cp.LastPulledSequence = pulled
		}
		return saveCheckpoint(r.db, r.opts.RemoteURL, cp)
	})
}

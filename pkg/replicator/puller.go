package replicator

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/cuemby/veyradb/pkg/blip"
	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/log"
	"github.com/cuemby/veyradb/pkg/revtree"
	"github.com/cuemby/veyradb/pkg/types"
)

// Puller pulls remote changes: it answers the peer's "changes" requests
// with the wanted subset, then installs each "rev" the peer sends for a
// wanted sequence. Its two handlers both run on the owning Connection's
// read loop, so the mutex here only needs to protect state the
// Replicator's other goroutines (the Pusher) never touch.
type Puller struct {
	r          *Replicator
	continuous bool

	mu          sync.Mutex
	requested   map[uint64]bool // remote sequence -> awaiting its rev
	highestSeen uint64
	lastSeq     uint64
	caughtUp    bool
}

func newPuller(r *Replicator, continuous bool) *Puller {
	return &Puller{r: r, continuous: continuous, requested: make(map[uint64]bool)}
}

// start tells the peer to begin streaming changes after sinceSeq.
func (p *Puller) start(sinceSeq uint64) *dberr.Error {
	p.mu.Lock()
	p.lastSeq = sinceSeq
	p.mu.Unlock()

	req := blip.NewRequest("subChanges", map[string]string{
		"since":      strconv.FormatUint(sinceSeq, 10),
		"continuous": strconv.FormatBool(p.continuous),
	}, nil)
	req.Flags |= blip.NoReply
	_, derr := p.r.conn.SendRequest(req)
	return derr
}

// handleChanges answers the peer's batch of proposed changes with a
// parallel array of booleans marking which ones this side wants.
func (p *Puller) handleChanges(req *blip.Message) *blip.Message {
	var entries []ChangeEntry
	if err := json.Unmarshal(req.Body, &entries); err != nil {
		return blip.NewErrorResponse(string(dberr.Core), int(dberr.InvalidParameter), "malformed changes body")
	}

	if len(entries) == 0 {
		p.mu.Lock()
		p.caughtUp = true
		p.mu.Unlock()
		return blip.NewResponse(nil, []byte("[]"))
	}

	wanted := make([]bool, len(entries))
	p.mu.Lock()
	for i, e := range entries {
		if e.Sequence > p.highestSeen {
			p.highestSeen = e.Sequence
		}
		have, derr := p.haveRevLocked(e.DocID, e.RevID)
		if derr != nil {
			log.WithReplicator(p.r.opts.RemoteURL).Warn().Err(derr).
				Str("docID", e.DocID).Msg("pull: failed checking local revision")
		}
		if !have {
			wanted[i] = true
			p.requested[e.Sequence] = true
		}
	}
	p.advanceLocked()
	p.mu.Unlock()

	out, _ := json.Marshal(wanted)
	return blip.NewResponse(nil, out)
}

// haveRevLocked asks the DBActor whether docID's current revision is
// already revID, so an already-current doc isn't re-pulled.
func (p *Puller) haveRevLocked(docID, revID string) (bool, *dberr.Error) {
	var have bool
	derr := p.r.runOnDBActor("puller", func() *dberr.Error {
		doc, derr := p.r.db.GetDocument(docID)
		if derr != nil {
			if derr.Code == dberr.NotFound {
				have = false
				return nil
			}
			return derr
		}
		have = string(doc.RevID) == revID
		return nil
	})
	return have, derr
}

// handleRev installs one pulled revision and, once its sequence is no
// longer outstanding, advances the checkpoint.
func (p *Puller) handleRev(req *blip.Message) *blip.Message {
	var rev RevMessage
	if err := json.Unmarshal(req.Body, &rev); err != nil {
		return blip.NewErrorResponse(string(dberr.Core), int(dberr.InvalidParameter), "malformed rev body")
	}

	if derr := p.insertRev(rev); derr != nil {
		return blip.NewErrorResponse(string(derr.Domain), int(derr.Code), derr.Message)
	}

	p.mu.Lock()
	delete(p.requested, rev.Sequence)
	p.advanceLocked()
	lastSeq := p.lastSeq
	p.mu.Unlock()

	if derr := p.r.saveCheckpoint(0, lastSeq); derr != nil {
		log.WithReplicator(p.r.opts.RemoteURL).Warn().Err(derr).Msg("pull: failed saving checkpoint")
	}

	return blip.NewResponse(nil, nil)
}

// insertRev appends rev as a new child revision of docID's current tree
// (or as the sole root if the document doesn't exist locally yet), run
// on the DBActor so it never races the Pusher reading the same document.
func (p *Puller) insertRev(rev RevMessage) *dberr.Error {
	return p.r.runOnDBActor("puller", func() *dberr.Error {
		ks, derr := p.r.db.DefaultKeyStore()
		if derr != nil {
			return derr
		}
		existing, derr := ks.Get([]byte(rev.DocID), types.ContentMetaOnly)
		if derr != nil {
			return derr
		}

		var revs []revtree.Rev
		var parentIdx uint16 = revtree.NoParent
		if existing.Exists && len(existing.Meta) > 0 {
			decoded, derr := revtree.DecodeTree(existing.Meta, existing.Sequence)
			if derr != nil {
				return derr
			}
			revs = decoded
			if idx, ok := revtree.New(decoded).CurrentIndex(); ok {
				parentIdx = uint16(idx)
			}
		}

		tree := revtree.New(revs)
		tree.InsertChild(parentIdx, []byte(rev.RevID), rev.Body, rev.Deleted, false)
		meta := revtree.EncodeTree(tree.Revs)

		_, derr = p.r.db.PutDocument(rev.DocID, meta, rev.Body, rev.Deleted)
		return derr
	})
}

// advanceLocked recomputes lastSeq: with nothing outstanding it's the
// highest sequence proposed so far, otherwise it stalls one behind the
// lowest still-outstanding sequence so a gap in arrival order never
// makes the checkpoint skip an unacknowledged rev. Caller holds p.mu.
func (p *Puller) advanceLocked() {
	if len(p.requested) == 0 {
		p.lastSeq = p.highestSeen
		return
	}
	min := p.highestSeen
	for seq := range p.requested {
		if seq < min {
			min = seq
		}
	}
	if min > 0 {
		p.lastSeq = min - 1
	}
}

// LastSequence reports the highest remote sequence fully accounted for
// (installed, or known not wanted).
func (p *Puller) LastSequence() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeq
}

// CaughtUp reports whether the puller has received an empty changes
// batch and has no revisions still outstanding.
func (p *Puller) CaughtUp() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caughtUp && len(p.requested) == 0
}

package replicator

import (
	"encoding/json"
	"sync"

	"github.com/cuemby/veyradb/pkg/blip"
	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/feed"
	"github.com/cuemby/veyradb/pkg/log"
)

// Pusher reads the local change feed from the last pushed sequence
// onward, offers batches to the peer as "changes" messages, and streams
// the wanted subset as "rev" messages.
type Pusher struct {
	r          *Replicator
	continuous bool

	once   sync.Once
	stopCh chan struct{}
}

func newPusher(r *Replicator, continuous bool) *Pusher {
	return &Pusher{r: r, continuous: continuous, stopCh: make(chan struct{})}
}

// start subscribes to the change feed at lastPushed and launches the
// pusher's loop in its own goroutine.
func (p *Pusher) start(lastPushed uint64) {
	listener, backlog := p.r.db.Tracker().Subscribe(lastPushed, 256)
	go p.run(listener, backlog)
}

func (p *Pusher) stop() {
	p.once.Do(func() { close(p.stopCh) })
}

func (p *Pusher) run(listener feed.Listener, backlog []feed.Change) {
	logger := log.WithReplicator(p.r.opts.RemoteURL)
	defer p.r.db.Tracker().Cancel(listener)

	pending := backlog
	for {
		if len(pending) == 0 {
			if !p.continuous {
				// An empty changes batch tells the peer's Puller it is caught up.
				if _, derr := p.r.conn.SendRequest(blip.NewRequest("changes", nil, []byte("[]"))); derr != nil {
					logger.Warn().Err(derr).Msg("push: failed sending caught-up marker")
				}
				return
			}
			select {
			case c, ok := <-listener:
				if !ok {
					return
				}
				pending = append(pending, c)
				pending = drainAvailable(listener, pending, p.r.opts.BatchSize)
			case <-p.stopCh:
				return
			}
		}

		batchLen := len(pending)
		if batchLen > p.r.opts.BatchSize {
			batchLen = p.r.opts.BatchSize
		}
		batch := pending[:batchLen]
		pending = pending[batchLen:]

		lastSeq, derr := p.sendBatch(batch)
		if derr != nil {
			logger.Warn().Err(derr).Msg("push: batch failed")
			return
		}

		p.r.db.Tracker().Advance(listener, lastSeq)
		if derr := p.r.saveCheckpoint(lastSeq, 0); derr != nil {
			logger.Warn().Err(derr).Msg("push: failed saving checkpoint")
		}
	}
}

// drainAvailable opportunistically collects any further changes already
// buffered on listener, up to limit entries, without blocking.
func drainAvailable(listener feed.Listener, pending []feed.Change, limit int) []feed.Change {
	for len(pending) < limit {
		select {
		case c, ok := <-listener:
			if !ok {
				return pending
			}
			pending = append(pending, c)
		default:
			return pending
		}
	}
	return pending
}

// sendBatch offers batch to the peer, then streams a "rev" message for
// every entry the peer marks wanted. It returns the highest sequence in
// the batch once every rev in it has been acknowledged or declined.
func (p *Pusher) sendBatch(batch []feed.Change) (uint64, *dberr.Error) {
	entries := make([]ChangeEntry, len(batch))
	for i, c := range batch {
		revID, derr := p.currentRevID(c.DocID)
		if derr != nil {
			return 0, derr
		}
		entries[i] = ChangeEntry{Sequence: c.Sequence, DocID: c.DocID, RevID: revID, Deleted: c.Deleted}
	}

	body, err := json.Marshal(entries)
	if err != nil {
		return 0, dberr.Wrap(dberr.Unexpected, err, "encoding changes batch")
	}
	resp, derr := p.r.conn.SendRequest(blip.NewRequest("changes", nil, body))
	if derr != nil {
		return 0, derr
	}

	var wanted []bool
	if err := json.Unmarshal(resp.Body, &wanted); err != nil {
		return 0, dberr.Wrap(dberr.Unexpected, err, "decoding changes response")
	}

	inFlight := make(chan struct{}, p.r.opts.MaxInFlight)
	var wg sync.WaitGroup
	var firstErr *dberr.Error
	var mu sync.Mutex

	for i, c := range batch {
		if i >= len(wanted) || !wanted[i] {
			continue
		}
		inFlight <- struct{}{}
		wg.Add(1)
		go func(c feed.Change) {
			defer wg.Done()
			defer func() { <-inFlight }()
			if derr := p.sendRev(c); derr != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = derr
				}
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	return batch[len(batch)-1].Sequence, nil
}

func (p *Pusher) currentRevID(docID string) (string, *dberr.Error) {
	var revID string
	derr := p.r.runOnDBActor("pusher", func() *dberr.Error {
		doc, derr := p.r.db.GetDocument(docID)
		if derr != nil {
			if derr.Code == dberr.NotFound {
				return nil
			}
			return derr
		}
		revID = string(doc.RevID)
		return nil
	})
	return revID, derr
}

func (p *Pusher) sendRev(c feed.Change) *dberr.Error {
	var body []byte
	var revID string
	derr := p.r.runOnDBActor("pusher", func() *dberr.Error {
		doc, derr := p.r.db.GetDocument(c.DocID)
		if derr != nil {
			return derr
		}
		body = doc.Body
		revID = string(doc.RevID)
		return nil
	})
	if derr != nil {
		return derr
	}

	rev := RevMessage{
		Sequence: c.Sequence,
		DocID:    c.DocID,
		RevID:    revID,
		History:  []string{revID},
		Deleted:  c.Deleted,
		Body:     body,
	}
	payload, err := json.Marshal(rev)
	if err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "encoding rev message")
	}

	_, derr = p.r.conn.SendRequest(blip.NewRequest("rev", nil, payload))
	return derr
}

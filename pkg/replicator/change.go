package replicator

import (
	"encoding/json"
	"fmt"
)

// ChangeEntry is one row of a "changes" message: a sequence pushed by the
// sender plus enough of the document's identity for the receiver to
// decide whether it already has that revision. It marshals as the
// compact wire tuple [sequence, docID, revID, deleted?] rather than a
// JSON object, to keep large batches small on the wire.
type ChangeEntry struct {
	Sequence uint64
	DocID    string
	RevID    string
	Deleted  bool
}

func (c ChangeEntry) MarshalJSON() ([]byte, error) {
	tuple := []any{c.Sequence, c.DocID, c.RevID}
	if c.Deleted {
		tuple = append(tuple, true)
	}
	return json.Marshal(tuple)
}

func (c *ChangeEntry) UnmarshalJSON(data []byte) error {
	var tuple []any
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) < 3 {
		return fmt.Errorf("replicator: change entry has %d elements, want at least 3", len(tuple))
	}
	seq, ok := tuple[0].(float64)
	if !ok {
		return fmt.Errorf("replicator: change entry sequence is not a number")
	}
	c.Sequence = uint64(seq)
	c.DocID, _ = tuple[1].(string)
	c.RevID, _ = tuple[2].(string)
	if len(tuple) > 3 {
		c.Deleted, _ = tuple[3].(bool)
	}
	return nil
}

// RevMessage is the body of a "rev" message: one revision's identity,
// ancestry, and content, sent in response to being marked wanted in a
// "changes" reply.
type RevMessage struct {
	Sequence uint64          `json:"seq"`
	DocID    string          `json:"docID"`
	RevID    string          `json:"revID"`
	History  []string        `json:"history,omitempty"`
	Deleted  bool            `json:"deleted,omitempty"`
	Body     json.RawMessage `json:"body"`
}

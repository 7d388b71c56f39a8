package replicator

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"

	"github.com/cuemby/veyradb/pkg/database"
	"github.com/cuemby/veyradb/pkg/dberr"
)

// checkpointStoreName is the reserved raw-document store replication
// checkpoints live in, distinct from any document key store.
const checkpointStoreName = "_replicator"

// Checkpoint is the persisted cursor pair for one remote peer: how far
// this side's pusher has pushed, and how far its puller has pulled.
type Checkpoint struct {
	LastPushedSequence uint64 `json:"lastPushedSequence"`
	LastPulledSequence uint64 `json:"lastPulledSequence"`
}

// checkpointKey derives the raw-document key from the remote URL, per
// §6's "checkpoint/<remote-url-hash>" naming.
func checkpointKey(remoteURL string) string {
	sum := sha1.Sum([]byte(remoteURL))
	return "checkpoint/" + hex.EncodeToString(sum[:])
}

func loadCheckpoint(db *database.Database, remoteURL string) (Checkpoint, *dberr.Error) {
	doc, derr := db.GetRawDocument(checkpointStoreName, checkpointKey(remoteURL))
	if derr != nil {
		return Checkpoint{}, derr
	}
	if doc.Body == nil {
		return Checkpoint{}, nil
	}
	var cp Checkpoint
	if err := json.Unmarshal(doc.Body, &cp); err != nil {
		return Checkpoint{}, dberr.Wrap(dberr.Unexpected, err, "decoding replication checkpoint")
	}
	return cp, nil
}

func saveCheckpoint(db *database.Database, remoteURL string, cp Checkpoint) *dberr.Error {
	body, err := json.Marshal(cp)
	if err != nil {
		return dberr.Wrap(dberr.Unexpected, err, "encoding replication checkpoint")
	}
	return db.PutRawDocument(checkpointStoreName, checkpointKey(remoteURL), body)
}

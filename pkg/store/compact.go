package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/veyradb/pkg/dberr"
)

// compactionLock ensures only one compaction runs across the process at
// any moment, independent of which database or key store it targets.
var compactionLock sync.Mutex

// purgeCount is incremented once per row actually reclaimed by Compact,
// across every store; exposed for diagnostics and tests.
var purgeCount atomic.Uint64

// OnCompactCallback is invoked with start=true just before a compaction
// begins and start=false right after it ends. Nil by default.
var OnCompactCallback func(start bool)

// PurgeCount returns the total number of rows reclaimed by Compact calls
// since process start.
func PurgeCount() uint64 { return purgeCount.Load() }

// Compact runs outside any transaction: it deletes every row with
// deleted=1 and reclaims the freed pages via VACUUM. Only one compaction
// may run at a time across the whole process.
func (ks *KeyStore) Compact() (purged uint64, derr *dberr.Error) {
	if !ks.caps.SoftDeletes {
		return 0, nil
	}

	compactionLock.Lock()
	defer compactionLock.Unlock()

	if OnCompactCallback != nil {
		OnCompactCallback(true)
		defer OnCompactCallback(false)
	}

	tbl := tableName(ks.name)
	res, err := ks.db.sql.Exec(fmt.Sprintf(`DELETE FROM %s WHERE deleted = 1`, tbl))
	if err != nil {
		return 0, dberr.Wrap(dberr.Unexpected, err, "compacting key store")
	}
	n, _ := res.RowsAffected()
	purgeCount.Add(uint64(n))

	if _, err := ks.db.sql.Exec(`VACUUM`); err != nil {
		return uint64(n), dberr.Wrap(dberr.Unexpected, err, "vacuuming database")
	}
	return uint64(n), nil
}

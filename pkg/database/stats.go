package database

// Stats adapts a Database to metrics.StatsSource. A separate adapter
// type, rather than satisfying the interface directly on *Database,
// keeps the facade's own methods returning *dberr.Error consistently
// without a name clash against the interface's plain-error signatures.
type Stats struct {
	db *Database
}

// NewStats wraps db for metrics collection.
func NewStats(db *Database) *Stats { return &Stats{db: db} }

// StoreName satisfies metrics.StatsSource.
func (s *Stats) StoreName() string { return defaultStoreName }

// DocumentCount satisfies metrics.StatsSource.
func (s *Stats) DocumentCount() (uint64, error) {
	n, derr := s.db.CountDocuments()
	if derr != nil {
		return 0, derr
	}
	return n, nil
}

// LastSequence satisfies metrics.StatsSource.
func (s *Stats) LastSequence() (uint64, error) {
	n, derr := s.db.LastSequence()
	if derr != nil {
		return 0, derr
	}
	return n, nil
}

// BlobCount satisfies metrics.StatsSource.
func (s *Stats) BlobCount() (uint64, error) {
	n, derr := s.db.blob.Count()
	if derr != nil {
		return 0, derr
	}
	return n, nil
}

// BlobBytes satisfies metrics.StatsSource.
func (s *Stats) BlobBytes() (uint64, error) {
	n, derr := s.db.blob.TotalSize()
	if derr != nil {
		return 0, derr
	}
	return n, nil
}

package metrics

import (
	"time"
)

// StatsSource is anything a Collector can poll for periodic gauge
// updates. database.Stats (from database.NewStats) satisfies it; collector.go only depends
// on this narrow interface so the metrics package never imports the
// storage engine back.
type StatsSource interface {
	StoreName() string
	DocumentCount() (uint64, error)
	LastSequence() (uint64, error)
	BlobCount() (uint64, error)
	BlobBytes() (uint64, error)
}

// Collector periodically samples a StatsSource into the package's gauges.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a metrics collector for the given source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	store := c.source.StoreName()

	if n, err := c.source.DocumentCount(); err == nil {
		DocumentsTotal.WithLabelValues(store).Set(float64(n))
	}
	if seq, err := c.source.LastSequence(); err == nil {
		SequenceCurrent.WithLabelValues(store).Set(float64(seq))
	}
	if n, err := c.source.BlobCount(); err == nil {
		BlobsTotal.Set(float64(n))
	}
	if n, err := c.source.BlobBytes(); err == nil {
		BlobBytesTotal.Set(float64(n))
	}
}

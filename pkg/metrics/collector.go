package metrics

import (
	"time"

	"github.com/dpc/rostra/pkg/rostra"
	"github.com/dpc/rostra/pkg/storage"
)

// Collector periodically samples a node's storage engine into the storage
// gauges declared in metrics.go on a ticker, the same start/stop shape as any other background
// worker in this module.
type Collector struct {
	db     *storage.DB
	self   rostra.RostraId
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector for db, reporting per-identity
// gauges for self.
func NewCollector(db *storage.DB, self rostra.RostraId) *Collector {
	return &Collector{
		db:     db,
		self:   self,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectStorageMetrics()
	c.collectHeadMetrics()
}

func (c *Collector) collectStorageMetrics() {
	stats, err := c.db.Stats()
	if err != nil {
		return
	}

	EventsTotal.Set(float64(stats.Events))
	MissingParentsTotal.Set(float64(stats.MissingParents))
	MissingContentTotal.Set(float64(stats.MissingContent))
	FollowersTotal.Set(float64(stats.Followers))
}

func (c *Collector) collectHeadMetrics() {
	page, err := c.db.HeadsForAuthor(c.self, nil, 1<<20)
	if err != nil {
		return
	}

	HeadsTotal.Set(float64(len(page.Items)))
}

package collection

import (
	"github.com/pingcap-incubator/tinydoc/kv/util/worker"
	"github.com/pingcap-incubator/tinydoc/log"
)

type flushTask struct{}

type flushHandler struct {
	c *Collection
}

func (h flushHandler) Handle(t worker.Task) {
	if _, ok := t.(flushTask); !ok {
		log.Errorf("flusher of %s got unexpected task %T", h.c.schema.Name, t)
		return
	}
	if err := h.c.Flush(); err != nil {
		log.Errorf("flush of %s failed: %v", h.c.schema.Name, err)
	}
}

// StartFlusher flushes the buffer every flush interval on a background worker.
func (c *Collection) StartFlusher() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	if c.flusher != nil {
		return
	}
	c.flusher = worker.NewWorker("flusher-"+c.schema.Name, &c.wg)
	c.flusher.Start(flushHandler{c: c})
	c.flusher.StartTicker(c.conf.FlushInterval.Duration, flushTask{})
}

// Stop stops the background flusher and flushes whatever is still buffered.
func (c *Collection) Stop() error {
	c.flushMu.Lock()
	w := c.flusher
	c.flusher = nil
	c.flushMu.Unlock()
	if w != nil {
		w.Stop()
		c.wg.Wait()
	}
	return c.Flush()
}

// checkThreshold asks for a flush once the buffer holds more parts than the configured threshold.
func (c *Collection) checkThreshold() {
	threshold := c.conf.FlushThreshold
	if threshold == 0 || c.buf.Pending() <= threshold {
		return
	}
	c.flushMu.Lock()
	w := c.flusher
	c.flushMu.Unlock()
	if w != nil {
		w.TrySend(flushTask{})
		return
	}
	if err := c.Flush(); err != nil {
		log.Errorf("flush of %s failed: %v", c.schema.Name, err)
	}
}

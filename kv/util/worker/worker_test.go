package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingHandler struct {
	mu      sync.Mutex
	started bool
	tasks   []Task
}

func (h *countingHandler) Start() {
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
}

func (h *countingHandler) Handle(t Task) {
	h.mu.Lock()
	h.tasks = append(h.tasks, t)
	h.mu.Unlock()
}

func (h *countingHandler) count(task Task) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, t := range h.tasks {
		if t == task {
			n++
		}
	}
	return n
}

func TestWorker(t *testing.T) {
	wg := new(sync.WaitGroup)
	w := NewWorker("test", wg)
	h := &countingHandler{}
	w.Start(h)
	w.Sender() <- "a"
	assert.True(t, w.TrySend("b"))
	w.Stop()
	wg.Wait()

	assert.True(t, h.started)
	assert.Equal(t, []Task{"a", "b"}, h.tasks)
}

func TestTicker(t *testing.T) {
	wg := new(sync.WaitGroup)
	w := NewWorker("ticker", wg)
	h := &countingHandler{}
	w.Start(h)
	w.StartTicker(5*time.Millisecond, "tick")

	deadline := time.Now().Add(time.Second)
	for h.count("tick") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	wg.Wait()
	assert.True(t, h.count("tick") >= 2)
}

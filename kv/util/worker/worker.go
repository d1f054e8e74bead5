package worker

import (
	"sync"
	"time"

	"github.com/pingcap-incubator/tinydoc/log"
)

type TaskStop struct{}

type Task interface{}

// Worker handles the tasks sent to it one by one on its own goroutine.
type Worker struct {
	name     string
	sender   chan<- Task
	receiver <-chan Task
	closeCh  chan struct{}
	wg       *sync.WaitGroup
}

type TaskHandler interface {
	Handle(t Task)
}

type Starter interface {
	Start()
}

func (w *Worker) Start(handler TaskHandler) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if s, ok := handler.(Starter); ok {
			s.Start()
		}
		for {
			task := <-w.receiver
			if _, ok := task.(TaskStop); ok {
				log.Debugf("worker %s stopped", w.name)
				return
			}
			handler.Handle(task)
		}
	}()
}

// StartTicker sends task to the worker every interval until the worker is stopped. A tick is skipped
// when the worker is still busy with earlier ones.
func (w *Worker) StartTicker(interval time.Duration, task Task) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.TrySend(task)
			case <-w.closeCh:
				return
			}
		}
	}()
}

func (w *Worker) Sender() chan<- Task {
	return w.sender
}

// TrySend queues task unless the queue is full, it reports whether the task was queued.
func (w *Worker) TrySend(task Task) bool {
	select {
	case w.sender <- task:
		return true
	default:
		return false
	}
}

func (w *Worker) Stop() {
	close(w.closeCh)
	w.sender <- TaskStop{}
}

const defaultWorkerCapacity = 128

func NewWorker(name string, wg *sync.WaitGroup) *Worker {
	ch := make(chan Task, defaultWorkerCapacity)
	return &Worker{
		sender:   (chan<- Task)(ch),
		receiver: (<-chan Task)(ch),
		closeCh:  make(chan struct{}),
		name:     name,
		wg:       wg,
	}
}

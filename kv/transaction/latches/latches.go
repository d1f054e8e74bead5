package latches

import (
	"sort"
	"sync"
)

// Latching gives a writer exclusive access to the entities it changes. Index maintenance reads the
// stored record of an entity before it changes it, so two writers must never work on the same entity
// at the same time. A transaction keeps the latches of its entities until it commits or rolls back.
//
// A latch is a per-entity lock keyed by primary key. Only one writer can hold a latch at a time and a
// writer latching several entities at once gets all of them or none.
//
// Latching is implemented using a single map which maps primary keys to a Go WaitGroup. Access to this
// map is guarded by a mutex so latching is atomic and consistent.

type Latches struct {
	// Before changing an entity, the writer must have the latch for its primary key. Writers who find
	// a primary key latched wait on its WaitGroup.
	latchMap map[int]*sync.WaitGroup
	// Mutex to guard latchMap.
	latchGuard sync.Mutex
}

// NewLatches creates the latches of one collection, shared by all its writers.
func NewLatches() *Latches {
	l := new(Latches)
	l.latchMap = make(map[int]*sync.WaitGroup)
	return l
}

// AcquireLatches tries to latch all pks. If this succeeds, nil is returned. If any of them is latched
// already, the WaitGroup of that latch is returned and nothing is latched.
func (l *Latches) AcquireLatches(pks []int) *sync.WaitGroup {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	for _, pk := range pks {
		if latchWg, ok := l.latchMap[pk]; ok {
			return latchWg
		}
	}

	wg := new(sync.WaitGroup)
	wg.Add(1)
	for _, pk := range pks {
		l.latchMap[pk] = wg
	}
	return nil
}

// ReleaseLatches releases the latches of pks and wakes up the writers waiting on them. Each pk must
// have been latched in one call to AcquireLatches, several such groups may be released together.
func (l *Latches) ReleaseLatches(pks []int) {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	done := make(map[*sync.WaitGroup]struct{})
	for _, pk := range pks {
		wg, ok := l.latchMap[pk]
		if !ok {
			continue
		}
		if _, ok := done[wg]; !ok {
			wg.Done()
			done[wg] = struct{}{}
		}
		delete(l.latchMap, pk)
	}
}

// WaitForLatches latches all pks, waiting as long as any of them is held by another writer. pks are
// latched together so waiting writers cannot deadlock each other.
func (l *Latches) WaitForLatches(pks []int) {
	for {
		wg := l.AcquireLatches(pks)
		if wg == nil {
			return
		}
		wg.Wait()
	}
}

// Latched returns the latched primary keys in ascending order.
func (l *Latches) Latched() []int {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()
	res := make([]int, 0, len(l.latchMap))
	for pk := range l.latchMap {
		res = append(res, pk)
	}
	sort.Ints(res)
	return res
}

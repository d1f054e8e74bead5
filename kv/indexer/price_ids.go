package indexer

import (
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"go.uber.org/atomic"
)

// Sequence hands out internal price ids for a whole collection.
type Sequence struct {
	last *atomic.Int64
}

func NewSequence(last int) *Sequence {
	return &Sequence{last: atomic.NewInt64(int64(last))}
}

func (s *Sequence) Next() int {
	return int(s.last.Inc())
}

// Observe moves the sequence past id, it is used while ids are loaded from storage.
func (s *Sequence) Observe(id int) {
	for {
		last := s.last.Load()
		if int64(id) <= last || s.last.CAS(last, int64(id)) {
			return
		}
	}
}

func (s *Sequence) Last() int {
	return int(s.last.Load())
}

type priceRef struct {
	pk  int
	key mutation.PriceKey
}

// PriceIDs remembers the internal ids resolved during one write session, so every partition indexes
// a price under the same id and the record container stores it afterwards.
type PriceIDs struct {
	seq      *Sequence
	assigned map[priceRef]int
}

func NewPriceIDs(seq *Sequence) *PriceIDs {
	return &PriceIDs{seq: seq, assigned: make(map[priceRef]int)}
}

// Resolve returns the id of the price. A price keeps the id it had before, a price sellable for the
// first time gets the next one from the sequence.
func (p *PriceIDs) Resolve(pk int, key mutation.PriceKey, former *mutation.PriceValue) int {
	ref := priceRef{pk: pk, key: key}
	if id, ok := p.assigned[ref]; ok {
		return id
	}
	id := 0
	if former != nil {
		id = former.InternalID
	}
	if id == 0 {
		id = p.seq.Next()
	}
	p.assigned[ref] = id
	return id
}

// Seed makes Resolve return id for the price.
func (p *PriceIDs) Seed(pk int, key mutation.PriceKey, id int) {
	p.assigned[priceRef{pk: pk, key: key}] = id
	p.seq.Observe(id)
}

func (p *PriceIDs) PriceID(pk int, key mutation.PriceKey) (int, bool) {
	id, ok := p.assigned[priceRef{pk: pk, key: key}]
	return id, ok
}

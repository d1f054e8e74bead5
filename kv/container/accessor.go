package container

import (
	"sort"

	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/storage/buffer"
	"github.com/pingcap-incubator/tinydoc/log"
	"golang.org/x/text/language"
)

// Accessor returns the record containers of an entity, creating empty ones when nothing is stored.
type Accessor interface {
	Body(pk int) (*EntityBody, error)
	Attributes(pk int, locale language.Tag) (*AttributesContainer, error)
	AssociatedData(pk int, key mutation.AssociatedDataKey) (*AssociatedDataContainer, error)
	Prices(pk int) (*PricesContainer, error)
	References(pk int) (*ReferencesContainer, error)
}

// PartReader fetches a stored part, a nil value means the part does not exist.
type PartReader interface {
	Fetch(cf string, key []byte) ([]byte, error)
}

type bufferReader struct {
	buf *buffer.Buffer
	txn *buffer.Txn
}

func (r bufferReader) Fetch(cf string, key []byte) ([]byte, error) {
	return r.buf.Fetch(r.txn, cf, key)
}

// BufferReader reads parts as they are seen by txn, txn may be nil.
func BufferReader(buf *buffer.Buffer, txn *buffer.Txn) PartReader {
	return bufferReader{buf: buf, txn: txn}
}

// CachedAccessor loads every container of a single entity at most once and keeps the instances so
// mutations accumulate in them. It belongs to one write session and is not safe for concurrent use.
type CachedAccessor struct {
	pk     int
	reader PartReader

	body           *EntityBody
	attributes     map[language.Tag]*AttributesContainer
	associatedData map[mutation.AssociatedDataKey]*AssociatedDataContainer
	prices         *PricesContainer
	references     *ReferencesContainer
}

func NewCachedAccessor(pk int, reader PartReader) *CachedAccessor {
	return &CachedAccessor{
		pk:             pk,
		reader:         reader,
		attributes:     make(map[language.Tag]*AttributesContainer),
		associatedData: make(map[mutation.AssociatedDataKey]*AssociatedDataContainer),
	}
}

func (a *CachedAccessor) PrimaryKey() int {
	return a.pk
}

func (a *CachedAccessor) checkPrimaryKey(pk int) {
	if pk != a.pk {
		log.Panicf("container accessor of entity %d asked for entity %d", a.pk, pk)
	}
}

// load decodes the stored part into p and reports whether it was found.
func (a *CachedAccessor) load(p Part) (bool, error) {
	data, err := a.reader.Fetch(p.CF(), p.Key())
	if err != nil || data == nil {
		return false, err
	}
	return true, unmarshal(data, p)
}

func (a *CachedAccessor) Body(pk int) (*EntityBody, error) {
	a.checkPrimaryKey(pk)
	if a.body != nil {
		return a.body, nil
	}
	b := &EntityBody{PrimaryKey: pk}
	found, err := a.load(b)
	if err != nil {
		return nil, err
	}
	b.stored = found
	a.body = b
	return b, nil
}

func (a *CachedAccessor) Attributes(pk int, locale language.Tag) (*AttributesContainer, error) {
	a.checkPrimaryKey(pk)
	if c, ok := a.attributes[locale]; ok {
		return c, nil
	}
	c := &AttributesContainer{PrimaryKey: pk, Locale: locale}
	if _, err := a.load(c); err != nil {
		return nil, err
	}
	if c.Values == nil {
		c.Values = make(map[string]*mutation.AttributeValue)
	}
	a.attributes[locale] = c
	return c, nil
}

func (a *CachedAccessor) AssociatedData(pk int, key mutation.AssociatedDataKey) (*AssociatedDataContainer, error) {
	a.checkPrimaryKey(pk)
	if c, ok := a.associatedData[key]; ok {
		return c, nil
	}
	c := &AssociatedDataContainer{PrimaryKey: pk, DataKey: key}
	if _, err := a.load(c); err != nil {
		return nil, err
	}
	a.associatedData[key] = c
	return c, nil
}

func (a *CachedAccessor) Prices(pk int) (*PricesContainer, error) {
	a.checkPrimaryKey(pk)
	if a.prices != nil {
		return a.prices, nil
	}
	c := &PricesContainer{PrimaryKey: pk}
	if _, err := a.load(c); err != nil {
		return nil, err
	}
	if c.Prices == nil {
		c.Prices = make(map[mutation.PriceKey]*mutation.PriceValue)
	}
	a.prices = c
	return c, nil
}

func (a *CachedAccessor) References(pk int) (*ReferencesContainer, error) {
	a.checkPrimaryKey(pk)
	if a.references != nil {
		return a.references, nil
	}
	c := &ReferencesContainer{PrimaryKey: pk}
	if _, err := a.load(c); err != nil {
		return nil, err
	}
	if c.References == nil {
		c.References = make(map[mutation.ReferenceKey]*mutation.ReferenceValue)
	}
	a.references = c
	return c, nil
}

// ChangedParts returns the containers modified since they were loaded, the body first and the rest
// ordered by column family and key.
func (a *CachedAccessor) ChangedParts() []Part {
	var parts []Part
	for _, c := range a.attributes {
		if c.dirty {
			parts = append(parts, c)
		}
	}
	for _, c := range a.associatedData {
		if c.dirty {
			parts = append(parts, c)
		}
	}
	if a.prices != nil && a.prices.dirty {
		parts = append(parts, a.prices)
	}
	if a.references != nil && a.references.dirty {
		parts = append(parts, a.references)
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].CF() != parts[j].CF() {
			return parts[i].CF() < parts[j].CF()
		}
		return string(parts[i].Key()) < string(parts[j].Key())
	})
	if a.body != nil && (a.body.dirty || (!a.body.stored && len(parts) > 0)) {
		a.body.dirty = true
		parts = append([]Part{a.body}, parts...)
	}
	return parts
}

// AllParts loads and returns every stored part of the entity, used when the entity is deleted.
func (a *CachedAccessor) AllParts() ([]Part, error) {
	body, err := a.Body(a.pk)
	if err != nil {
		return nil, err
	}
	parts := []Part{body}
	global, err := a.Attributes(a.pk, language.Und)
	if err != nil {
		return nil, err
	}
	parts = append(parts, global)
	for _, locale := range body.AttributeLocales {
		c, err := a.Attributes(a.pk, locale)
		if err != nil {
			return nil, err
		}
		parts = append(parts, c)
	}
	for _, key := range body.AssociatedDataKeys {
		c, err := a.AssociatedData(a.pk, key)
		if err != nil {
			return nil, err
		}
		parts = append(parts, c)
	}
	prices, err := a.Prices(a.pk)
	if err != nil {
		return nil, err
	}
	refs, err := a.References(a.pk)
	if err != nil {
		return nil, err
	}
	return append(parts, prices, refs), nil
}

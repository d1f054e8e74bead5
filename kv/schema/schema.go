package schema

import (
	"fmt"
	"sync"

	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
	"golang.org/x/text/language"
)

// Evolution is the set of changes a write may make to the schema on its own.
type Evolution uint8

const (
	AddingAttributes Evolution = 1 << iota
	AddingAssociatedData
	AddingReferences
	AddingLocales

	NoEvolution  Evolution = 0
	AllEvolution           = AddingAttributes | AddingAssociatedData | AddingReferences | AddingLocales
)

func (e Evolution) Allows(flag Evolution) bool {
	return e&flag == flag
}

type AttributeSchema struct {
	Name       string
	Type       mutation.ValueType
	Unique     bool
	Filterable bool
	Sortable   bool
	Localized  bool
	// Number of decimal places kept when a decimal value is indexed as an integer.
	IndexedDecimalPlaces int
}

// Indexed reports whether the attribute has any sub-index at all.
func (a *AttributeSchema) Indexed() bool {
	return a.Unique || a.Filterable || a.Sortable
}

type AssociatedDataSchema struct {
	Name      string
	Localized bool
}

type ReferenceSchema struct {
	Name                 string
	ReferencedEntityType string
	// The referenced entity type is itself hierarchical, references are indexed by hierarchy node.
	ReferencedHierarchical bool
	Indexed                bool
	Faceted                bool
	Attributes             map[string]*AttributeSchema
}

// Attribute looks up an attribute defined on the reference.
func (r *ReferenceSchema) Attribute(name string) (*AttributeSchema, error) {
	if a, ok := r.Attributes[name]; ok {
		return a, nil
	}
	return nil, &ViolationError{Subject: "reference " + r.Name + " attribute " + name, Reason: "is not defined"}
}

func (r *ReferenceSchema) withAttribute(a *AttributeSchema) *ReferenceSchema {
	c := *r
	c.Attributes = make(map[string]*AttributeSchema, len(r.Attributes)+1)
	for k, v := range r.Attributes {
		c.Attributes[k] = v
	}
	c.Attributes[a.Name] = a
	return &c
}

// EntitySchema describes one entity collection. Definitions are immutable once added, evolution
// replaces them under the schema lock so lookups may keep the pointers they got.
type EntitySchema struct {
	Name               string
	Locales            []language.Tag
	WithHierarchy      bool
	WithPrice          bool
	IndexedPricePlaces int
	Evolution          Evolution

	mu             sync.RWMutex
	attributes     map[string]*AttributeSchema
	associatedData map[string]*AssociatedDataSchema
	references     map[string]*ReferenceSchema
}

func NewEntitySchema(name string) *EntitySchema {
	return &EntitySchema{
		Name:           name,
		attributes:     make(map[string]*AttributeSchema),
		associatedData: make(map[string]*AssociatedDataSchema),
		references:     make(map[string]*ReferenceSchema),
	}
}

func (s *EntitySchema) AddAttribute(a *AttributeSchema) *EntitySchema {
	s.mu.Lock()
	s.attributes[a.Name] = a
	s.mu.Unlock()
	return s
}

func (s *EntitySchema) AddAssociatedData(d *AssociatedDataSchema) *EntitySchema {
	s.mu.Lock()
	s.associatedData[d.Name] = d
	s.mu.Unlock()
	return s
}

func (s *EntitySchema) AddReference(r *ReferenceSchema) *EntitySchema {
	if r.Attributes == nil {
		r.Attributes = make(map[string]*AttributeSchema)
	}
	s.mu.Lock()
	s.references[r.Name] = r
	s.mu.Unlock()
	return s
}

func (s *EntitySchema) Attribute(name string) (*AttributeSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.attributes[name]; ok {
		return a, nil
	}
	return nil, s.violation("attribute "+name, "is not defined")
}

// Attributes returns all attribute definitions in no particular order.
func (s *EntitySchema) Attributes() []*AttributeSchema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*AttributeSchema, 0, len(s.attributes))
	for _, a := range s.attributes {
		res = append(res, a)
	}
	return res
}

func (s *EntitySchema) AssociatedData(name string) (*AssociatedDataSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.associatedData[name]; ok {
		return d, nil
	}
	return nil, s.violation("associated data "+name, "is not defined")
}

func (s *EntitySchema) Reference(name string) (*ReferenceSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.references[name]; ok {
		return r, nil
	}
	return nil, s.violation("reference "+name, "is not defined")
}

// ReferenceAttribute looks up an attribute of a reference.
func (s *EntitySchema) ReferenceAttribute(reference, name string) (*AttributeSchema, error) {
	r, err := s.Reference(reference)
	if err != nil {
		return nil, err
	}
	a, err := r.Attribute(name)
	if err != nil {
		return nil, s.violation("reference "+reference+" attribute "+name, "is not defined")
	}
	return a, nil
}

func (s *EntitySchema) SupportsLocale(locale language.Tag) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsLocale(s.Locales, locale)
}

func containsLocale(locales []language.Tag, locale language.Tag) bool {
	for _, l := range locales {
		if l == locale {
			return true
		}
	}
	return false
}

func (s *EntitySchema) violation(subject, reason string) *ViolationError {
	return &ViolationError{Entity: s.Name, Subject: subject, Reason: reason}
}

// ViolationError rejects a mutation stream which does not conform to the schema.
type ViolationError struct {
	Entity  string
	Subject string
	Reason  string
}

func (e *ViolationError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("schema violation: %s %s", e.Subject, e.Reason)
	}
	return fmt.Sprintf("schema violation in %s: %s %s", e.Entity, e.Subject, e.Reason)
}

// IsViolation reports whether err, or the error it wraps, is a schema violation.
func IsViolation(err error) bool {
	_, ok := errors.Cause(err).(*ViolationError)
	return ok
}

func logEvolution(entity, what string) {
	log.Infof("schema %s evolved: %s added", entity, what)
}

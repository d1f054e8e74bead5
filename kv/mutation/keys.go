package mutation

import (
	"fmt"
	"time"

	"github.com/pingcap/errors"
	"golang.org/x/text/language"
)

// AttributeKey identifies an attribute value. Locale is language.Und for non-localized attributes.
type AttributeKey struct {
	Name   string
	Locale language.Tag
}

func NewAttributeKey(name string) AttributeKey {
	return AttributeKey{Name: name, Locale: language.Und}
}

func NewLocalizedAttributeKey(name string, locale language.Tag) AttributeKey {
	return AttributeKey{Name: name, Locale: locale}
}

func (k AttributeKey) Localized() bool {
	return k.Locale != language.Und
}

func (k AttributeKey) String() string {
	if k.Localized() {
		return k.Name + ":" + k.Locale.String()
	}
	return k.Name
}

// AssociatedDataKey identifies an associated data value, Locale is language.Und when not localized.
type AssociatedDataKey struct {
	Name   string
	Locale language.Tag
}

func NewAssociatedDataKey(name string) AssociatedDataKey {
	return AssociatedDataKey{Name: name, Locale: language.Und}
}

func NewLocalizedAssociatedDataKey(name string, locale language.Tag) AssociatedDataKey {
	return AssociatedDataKey{Name: name, Locale: locale}
}

func (k AssociatedDataKey) Localized() bool {
	return k.Locale != language.Und
}

func (k AssociatedDataKey) String() string {
	if k.Localized() {
		return k.Name + ":" + k.Locale.String()
	}
	return k.Name
}

// PriceKey is the business key of a price.
type PriceKey struct {
	PriceID   int
	PriceList string
	Currency  string
}

func (k PriceKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.PriceID, k.PriceList, k.Currency)
}

// ReferenceKey identifies a reference by its name (the reference type) and the referenced primary key.
type ReferenceKey struct {
	Name       string
	PrimaryKey int
}

func (k ReferenceKey) String() string {
	return fmt.Sprintf("%s:%d", k.Name, k.PrimaryKey)
}

// InnerRecordHandling decides how prices sharing an inner record id resolve into one selling price.
type InnerRecordHandling int

const (
	HandlingNone InnerRecordHandling = iota
	HandlingLowestPrice
	HandlingSum
	HandlingUnknown
)

func (h InnerRecordHandling) String() string {
	switch h {
	case HandlingNone:
		return "NONE"
	case HandlingLowestPrice:
		return "LOWEST_PRICE"
	case HandlingSum:
		return "SUM"
	}
	return "UNKNOWN"
}

// ParseInnerRecordHandling is the inverse of InnerRecordHandling.String.
func ParseInnerRecordHandling(s string) (InnerRecordHandling, error) {
	for _, h := range []InnerRecordHandling{HandlingNone, HandlingLowestPrice, HandlingSum, HandlingUnknown} {
		if h.String() == s {
			return h, nil
		}
	}
	return HandlingUnknown, errors.Errorf("unknown inner record handling %q", s)
}

// DateTimeRange is a validity interval, a zero bound is open.
type DateTimeRange struct {
	From time.Time
	To   time.Time
}

func (r *DateTimeRange) ValidIn(moment time.Time) bool {
	if r == nil {
		return true
	}
	if !r.From.IsZero() && moment.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && moment.After(r.To) {
		return false
	}
	return true
}

func IntPtr(i int) *int {
	return &i
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalRange(a, b *DateTimeRange) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.From.Equal(b.From) && a.To.Equal(b.To)
}

package container

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/util/codec"
	"github.com/pingcap-incubator/tinydoc/kv/util/engine_util"
	"github.com/pingcap/errors"
	"golang.org/x/text/language"
)

// Part is a record container as it is stored, one value under one key of one column family.
type Part interface {
	CF() string
	Key() []byte
	Dirty() bool
	// Empty parts hold nothing worth keeping and are removed from storage instead of written.
	Empty() bool
}

// EntityBody holds the entity level state of the record.
type EntityBody struct {
	PrimaryKey int
	Version    int
	// Locales used by any localized value of the entity.
	Locales []language.Tag
	// Locales which have a per-locale attribute container.
	AttributeLocales []language.Tag
	Hierarchy        *mutation.HierarchyPlacement
	// Keys of the associated data which currently exist.
	AssociatedDataKeys []mutation.AssociatedDataKey

	stored bool
	dirty  bool

	// versioned is set once Version was raised for the current write session.
	versioned bool
}

func (b *EntityBody) CF() string   { return engine_util.CfBody }
func (b *EntityBody) Key() []byte  { return BodyKey(b.PrimaryKey) }
func (b *EntityBody) Dirty() bool  { return b.dirty }
func (b *EntityBody) Empty() bool  { return false }
func (b *EntityBody) Stored() bool { return b.stored }

func (b *EntityBody) HasLocale(locale language.Tag) bool {
	return containsTag(b.Locales, locale)
}

func (b *EntityBody) setHierarchy(p *mutation.HierarchyPlacement) {
	if b.Hierarchy.Equal(p) {
		return
	}
	b.Hierarchy = p
	b.dirty = true
}

func (b *EntityBody) addAssociatedDataKey(key mutation.AssociatedDataKey) {
	for _, k := range b.AssociatedDataKeys {
		if k == key {
			return
		}
	}
	b.AssociatedDataKeys = append(b.AssociatedDataKeys, key)
	b.dirty = true
}

func (b *EntityBody) removeAssociatedDataKey(key mutation.AssociatedDataKey) {
	for i, k := range b.AssociatedDataKeys {
		if k == key {
			b.AssociatedDataKeys = append(b.AssociatedDataKeys[:i:i], b.AssociatedDataKeys[i+1:]...)
			b.dirty = true
			return
		}
	}
}

func (b *EntityBody) setAttributeLocale(locale language.Tag, present bool) {
	if present == containsTag(b.AttributeLocales, locale) {
		return
	}
	if present {
		b.AttributeLocales = sortedTags(append(b.AttributeLocales[:len(b.AttributeLocales):len(b.AttributeLocales)], locale))
	} else {
		b.AttributeLocales = withoutTag(b.AttributeLocales, locale)
	}
	b.dirty = true
}

func (b *EntityBody) setLocales(locales []language.Tag) {
	locales = sortedTags(locales)
	if equalTags(b.Locales, locales) {
		return
	}
	b.Locales = locales
	b.dirty = true
}

// AttributesContainer holds either the global attributes (Locale is language.Und) or the attributes
// of one locale.
type AttributesContainer struct {
	PrimaryKey int
	Locale     language.Tag
	Values     map[string]*mutation.AttributeValue

	dirty bool
}

func (c *AttributesContainer) CF() string  { return engine_util.CfAttribute }
func (c *AttributesContainer) Key() []byte { return AttributesKey(c.PrimaryKey, c.Locale) }
func (c *AttributesContainer) Dirty() bool { return c.dirty }

func (c *AttributesContainer) Empty() bool {
	for _, v := range c.Values {
		if v.Exists() {
			return false
		}
	}
	return c.Locale != language.Und
}

// Get returns the stored value including a dropped one, or nil.
func (c *AttributesContainer) Get(name string) *mutation.AttributeValue {
	return c.Values[name]
}

// Live returns the existing values ordered by name.
func (c *AttributesContainer) Live() []*mutation.AttributeValue {
	res := make([]*mutation.AttributeValue, 0, len(c.Values))
	for _, v := range c.Values {
		if v.Exists() {
			res = append(res, v)
		}
	}
	return sortAttributeValues(res)
}

func sortAttributeValues(values []*mutation.AttributeValue) []*mutation.AttributeValue {
	sort.Slice(values, func(i, j int) bool {
		if values[i].Key.Name != values[j].Key.Name {
			return values[i].Key.Name < values[j].Key.Name
		}
		return values[i].Key.Locale.String() < values[j].Key.Locale.String()
	})
	return values
}

func (c *AttributesContainer) put(v *mutation.AttributeValue) {
	if c.Values[v.Key.Name] == v {
		return
	}
	c.Values[v.Key.Name] = v
	c.dirty = true
}

type AssociatedDataContainer struct {
	PrimaryKey int
	DataKey    mutation.AssociatedDataKey
	Value      *mutation.AssociatedDataValue

	dirty bool
}

func (c *AssociatedDataContainer) CF() string  { return engine_util.CfAssociatedData }
func (c *AssociatedDataContainer) Key() []byte { return AssociatedDataKey(c.PrimaryKey, c.DataKey) }
func (c *AssociatedDataContainer) Dirty() bool { return c.dirty }
func (c *AssociatedDataContainer) Empty() bool { return !c.Value.Exists() }

func (c *AssociatedDataContainer) put(v *mutation.AssociatedDataValue) {
	if c.Value == v {
		return
	}
	c.Value = v
	c.dirty = true
}

type PricesContainer struct {
	PrimaryKey int
	Handling   mutation.InnerRecordHandling
	Prices     map[mutation.PriceKey]*mutation.PriceValue

	dirty bool
}

func (c *PricesContainer) CF() string  { return engine_util.CfPrice }
func (c *PricesContainer) Key() []byte { return PricesKey(c.PrimaryKey) }
func (c *PricesContainer) Dirty() bool { return c.dirty }
func (c *PricesContainer) Empty() bool { return false }

func (c *PricesContainer) Get(key mutation.PriceKey) *mutation.PriceValue {
	return c.Prices[key]
}

// Sellable returns the prices taking part in the price indexes, ordered by internal id.
func (c *PricesContainer) Sellable() []*mutation.PriceValue {
	res := make([]*mutation.PriceValue, 0, len(c.Prices))
	for _, p := range c.Prices {
		if p.SellableNow() {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].InternalID < res[j].InternalID })
	return res
}

// Live returns all prices which are not removed, ordered by business key.
func (c *PricesContainer) Live() []*mutation.PriceValue {
	res := make([]*mutation.PriceValue, 0, len(c.Prices))
	for _, p := range c.Prices {
		if p.Exists() {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return lessPriceKey(res[i].Key, res[j].Key) })
	return res
}

func (c *PricesContainer) put(p *mutation.PriceValue) {
	if c.Prices[p.Key] == p {
		return
	}
	c.Prices[p.Key] = p
	c.dirty = true
}

func (c *PricesContainer) setHandling(h mutation.InnerRecordHandling) {
	if c.Handling == h {
		return
	}
	c.Handling = h
	c.dirty = true
}

type ReferencesContainer struct {
	PrimaryKey int
	References map[mutation.ReferenceKey]*mutation.ReferenceValue

	dirty bool
}

func (c *ReferencesContainer) CF() string  { return engine_util.CfReference }
func (c *ReferencesContainer) Key() []byte { return ReferencesKey(c.PrimaryKey) }
func (c *ReferencesContainer) Dirty() bool { return c.dirty }
func (c *ReferencesContainer) Empty() bool { return false }

func (c *ReferencesContainer) Get(key mutation.ReferenceKey) *mutation.ReferenceValue {
	return c.References[key]
}

// Live returns the existing references ordered by name and referenced primary key.
func (c *ReferencesContainer) Live() []*mutation.ReferenceValue {
	res := make([]*mutation.ReferenceValue, 0, len(c.References))
	for _, r := range c.References {
		if r.Exists() {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Key.Name != res[j].Key.Name {
			return res[i].Key.Name < res[j].Key.Name
		}
		return res[i].Key.PrimaryKey < res[j].Key.PrimaryKey
	})
	return res
}

func (c *ReferencesContainer) put(r *mutation.ReferenceValue) {
	if c.References[r.Key] == r {
		return
	}
	c.References[r.Key] = r
	c.dirty = true
}

// Part keys. Every key starts with the entity primary key so all parts of one entity are adjacent in
// their column family.

func BodyKey(pk int) []byte {
	return codec.EncodeInt(nil, int64(pk))
}

func AttributesKey(pk int, locale language.Tag) []byte {
	return codec.EncodeBytes(codec.EncodeInt(nil, int64(pk)), []byte(localeString(locale)))
}

func AssociatedDataKey(pk int, key mutation.AssociatedDataKey) []byte {
	b := codec.EncodeBytes(codec.EncodeInt(nil, int64(pk)), []byte(key.Name))
	return codec.EncodeBytes(b, []byte(localeString(key.Locale)))
}

func PricesKey(pk int) []byte {
	return codec.EncodeInt(nil, int64(pk))
}

func ReferencesKey(pk int) []byte {
	return codec.EncodeInt(nil, int64(pk))
}

// DecodePrimaryKey returns the primary key a part key starts with.
func DecodePrimaryKey(key []byte) (int, error) {
	_, pk, err := codec.DecodeInt(key)
	return int(pk), err
}

func localeString(locale language.Tag) string {
	if locale == language.Und {
		return ""
	}
	return locale.String()
}

// bodyRecord and attributesRecord are the stored forms of the containers holding locales.
type bodyRecord struct {
	PrimaryKey         int
	Version            int
	Locales            []string
	AttributeLocales   []string
	Hierarchy          *mutation.HierarchyPlacement
	AssociatedDataKeys []mutation.AssociatedDataKey
}

type attributesRecord struct {
	PrimaryKey int
	Locale     string
	Values     map[string]*mutation.AttributeValue
}

func (b *EntityBody) GobEncode() ([]byte, error) {
	return encodeRecord(&bodyRecord{
		PrimaryKey:         b.PrimaryKey,
		Version:            b.Version,
		Locales:            mutation.MarshalLocales(b.Locales),
		AttributeLocales:   mutation.MarshalLocales(b.AttributeLocales),
		Hierarchy:          b.Hierarchy,
		AssociatedDataKeys: b.AssociatedDataKeys,
	})
}

func (b *EntityBody) GobDecode(data []byte) error {
	var r bodyRecord
	if err := decodeRecord(data, &r); err != nil {
		return err
	}
	locales, err := mutation.UnmarshalLocales(r.Locales)
	if err != nil {
		return err
	}
	attributeLocales, err := mutation.UnmarshalLocales(r.AttributeLocales)
	if err != nil {
		return err
	}
	b.PrimaryKey, b.Version = r.PrimaryKey, r.Version
	b.Locales, b.AttributeLocales = locales, attributeLocales
	b.Hierarchy, b.AssociatedDataKeys = r.Hierarchy, r.AssociatedDataKeys
	return nil
}

func (c *AttributesContainer) GobEncode() ([]byte, error) {
	return encodeRecord(&attributesRecord{
		PrimaryKey: c.PrimaryKey,
		Locale:     c.Locale.String(),
		Values:     c.Values,
	})
}

func (c *AttributesContainer) GobDecode(data []byte) error {
	var r attributesRecord
	if err := decodeRecord(data, &r); err != nil {
		return err
	}
	locale, err := mutation.UnmarshalLocale([]byte(r.Locale))
	if err != nil {
		return err
	}
	c.PrimaryKey, c.Locale, c.Values = r.PrimaryKey, locale, r.Values
	return nil
}

func encodeRecord(r interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte, r interface{}) error {
	return errors.Trace(gob.NewDecoder(bytes.NewReader(data)).Decode(r))
}

// Marshal serializes the exported state of a part.
func Marshal(p Part) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, errors.Annotatef(err, "encode %s part", p.CF())
	}
	return buf.Bytes(), nil
}

func unmarshal(data []byte, p Part) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(p); err != nil {
		return errors.Annotatef(err, "decode %s part", p.CF())
	}
	return nil
}

func containsTag(tags []language.Tag, tag language.Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func withoutTag(tags []language.Tag, tag language.Tag) []language.Tag {
	res := make([]language.Tag, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			res = append(res, t)
		}
	}
	return res
}

func sortedTags(tags []language.Tag) []language.Tag {
	sort.Slice(tags, func(i, j int) bool { return tags[i].String() < tags[j].String() })
	return tags
}

func equalTags(a, b []language.Tag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lessPriceKey(a, b mutation.PriceKey) bool {
	if a.PriceID != b.PriceID {
		return a.PriceID < b.PriceID
	}
	if a.PriceList != b.PriceList {
		return a.PriceList < b.PriceList
	}
	return a.Currency < b.Currency
}

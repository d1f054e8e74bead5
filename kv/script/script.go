package script

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/schema"
	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// Op is one step of a mutation script: either a mutation stream for an entity or its removal.
// Consecutive ops sharing a non-empty Txn label are meant to commit together.
type Op struct {
	Txn       string
	PK        int
	Delete    bool
	Mutations []mutation.LocalMutation
}

// scriptFile is the TOML layout of a mutation script:
//
//  [[op]]
//  pk = 1
//    [[op.mutation]]
//    kind = "upsert-attribute"
//    name = "code"
//    value = "P-1"
//    [[op.mutation]]
//    kind = "upsert-price"
//    price-id = 1
//    price-list = "basic"
//    currency = "CZK"
//    without-tax = "100"
//    tax-rate = "21"
//    with-tax = "121"
//
//  [[op]]
//  pk = 2
//  delete = true
type scriptFile struct {
	Ops []opDef `toml:"op"`
}

type opDef struct {
	Txn       string        `toml:"txn"`
	PK        *int          `toml:"pk"`
	Delete    bool          `toml:"delete"`
	Mutations []mutationDef `toml:"mutation"`
}

type mutationDef struct {
	Kind   string      `toml:"kind"`
	Name   string      `toml:"name"`
	Locale string      `toml:"locale"`
	Value  interface{} `toml:"value"`

	// references
	Reference  string `toml:"reference"`
	RefPK      int    `toml:"ref-pk"`
	EntityType string `toml:"entity-type"`
	GroupType  string `toml:"group-type"`
	GroupPK    int    `toml:"group-pk"`
	// kind of the attribute mutation wrapped by update-reference-attribute
	Attribute string `toml:"attribute"`

	// prices
	PriceID       int             `toml:"price-id"`
	PriceList     string          `toml:"price-list"`
	Currency      string          `toml:"currency"`
	InnerRecordID *int            `toml:"inner-record-id"`
	WithoutTax    decimal.Decimal `toml:"without-tax"`
	TaxRate       decimal.Decimal `toml:"tax-rate"`
	WithTax       decimal.Decimal `toml:"with-tax"`
	ValidFrom     time.Time       `toml:"valid-from"`
	ValidTo       time.Time       `toml:"valid-to"`
	Sellable      *bool           `toml:"sellable"`
	Handling      string          `toml:"handling"`

	// hierarchy
	Parent *int `toml:"parent"`
	Order  int  `toml:"order"`
}

// LoadScript reads the mutation script at path. Attribute values are converted to the types s
// declares for them.
func LoadScript(path string, s *schema.EntitySchema) ([]Op, error) {
	var f scriptFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errors.Annotatef(err, "decode script %s", path)
	}
	warnUndecoded(path, meta)
	return f.build(s)
}

// DecodeScript reads a mutation script from TOML text.
func DecodeScript(data string, s *schema.EntitySchema) ([]Op, error) {
	var f scriptFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, errors.Annotate(err, "decode script")
	}
	return f.build(s)
}

func (f *scriptFile) build(s *schema.EntitySchema) ([]Op, error) {
	ops := make([]Op, 0, len(f.Ops))
	for i, d := range f.Ops {
		if d.PK == nil {
			return nil, errors.Errorf("op %d has no pk", i)
		}
		op := Op{Txn: d.Txn, PK: *d.PK, Delete: d.Delete}
		if d.Delete && len(d.Mutations) > 0 {
			return nil, errors.Errorf("op %d deletes entity %d but also carries mutations", i, op.PK)
		}
		for j := range d.Mutations {
			m, err := d.Mutations[j].build(s)
			if err != nil {
				return nil, errors.Annotatef(err, "op %d mutation %d", i, j)
			}
			op.Mutations = append(op.Mutations, m)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (d *mutationDef) build(s *schema.EntitySchema) (mutation.LocalMutation, error) {
	kind, err := mutation.ParseKind(d.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case mutation.KindUpsertAttribute, mutation.KindRemoveAttribute, mutation.KindApplyDeltaAttribute:
		a, _ := s.Attribute(d.Name)
		return d.attributeMutation(kind, a)
	case mutation.KindUpsertPrice:
		m := mutation.UpsertPrice{
			Key:             d.priceKey(),
			InnerRecordID:   d.InnerRecordID,
			PriceWithoutTax: d.WithoutTax,
			TaxRate:         d.TaxRate,
			PriceWithTax:    d.WithTax,
			Sellable:        d.Sellable == nil || *d.Sellable,
		}
		if !d.ValidFrom.IsZero() || !d.ValidTo.IsZero() {
			m.Validity = &mutation.DateTimeRange{From: d.ValidFrom, To: d.ValidTo}
		}
		return m, nil
	case mutation.KindRemovePrice:
		return mutation.RemovePrice{Key: d.priceKey()}, nil
	case mutation.KindSetPriceInnerRecordHandling:
		h, err := mutation.ParseInnerRecordHandling(d.Handling)
		if err != nil {
			return nil, err
		}
		return mutation.SetPriceInnerRecordHandling{Handling: h}, nil
	case mutation.KindInsertReference:
		return mutation.InsertReference{Key: d.referenceKey(), ReferencedEntityType: d.EntityType}, nil
	case mutation.KindRemoveReference:
		return mutation.RemoveReference{Key: d.referenceKey()}, nil
	case mutation.KindUpsertReferenceGroup:
		return mutation.UpsertReferenceGroup{Key: d.referenceKey(), GroupType: d.GroupType, GroupPrimaryKey: d.GroupPK}, nil
	case mutation.KindRemoveReferenceGroup:
		return mutation.RemoveReferenceGroup{Key: d.referenceKey()}, nil
	case mutation.KindUpdateReferenceAttribute:
		inner, err := mutation.ParseKind(d.Attribute)
		if err != nil {
			return nil, errors.Annotate(err, "reference attribute")
		}
		switch inner {
		case mutation.KindUpsertAttribute, mutation.KindRemoveAttribute, mutation.KindApplyDeltaAttribute:
		default:
			return nil, errors.Errorf("reference attribute cannot be changed by %s", inner)
		}
		a, _ := s.ReferenceAttribute(d.Reference, d.Name)
		am, err := d.attributeMutation(inner, a)
		if err != nil {
			return nil, err
		}
		return mutation.UpdateReferenceAttribute{Key: d.referenceKey(), Attribute: am}, nil
	case mutation.KindSetHierarchyPlacement:
		return mutation.SetHierarchyPlacement{ParentPrimaryKey: d.Parent, Order: d.Order}, nil
	case mutation.KindRemoveHierarchyPlacement:
		return mutation.RemoveHierarchyPlacement{}, nil
	case mutation.KindUpsertAssociatedData:
		if err := checkScalar(d.Value); err != nil {
			return nil, errors.Annotatef(err, "associated data %s", d.Name)
		}
		key, err := d.associatedDataKey()
		if err != nil {
			return nil, err
		}
		return mutation.UpsertAssociatedData{Key: key, Value: d.Value}, nil
	case mutation.KindRemoveAssociatedData:
		key, err := d.associatedDataKey()
		if err != nil {
			return nil, err
		}
		return mutation.RemoveAssociatedData{Key: key}, nil
	}
	return nil, errors.Errorf("unsupported mutation kind %s", kind)
}

// attributeMutation builds an attribute mutation; a is nil when the attribute is not defined yet.
func (d *mutationDef) attributeMutation(kind mutation.Kind, a *schema.AttributeSchema) (mutation.AttributeMutation, error) {
	if d.Name == "" {
		return nil, errors.Errorf("%s needs an attribute name", kind)
	}
	key := mutation.NewAttributeKey(d.Name)
	if d.Locale != "" {
		tag, err := language.Parse(d.Locale)
		if err != nil {
			return nil, errors.Annotatef(err, "attribute %s locale", d.Name)
		}
		key = mutation.NewLocalizedAttributeKey(d.Name, tag)
	}
	if kind == mutation.KindRemoveAttribute {
		return mutation.RemoveAttribute{Key: key}, nil
	}
	v, err := attributeValue(d.Value, a)
	if err != nil {
		return nil, errors.Annotatef(err, "attribute %s", d.Name)
	}
	if kind == mutation.KindApplyDeltaAttribute {
		return mutation.ApplyDeltaAttribute{Key: key, Delta: v}, nil
	}
	return mutation.UpsertAttribute{Key: key, Value: v}, nil
}

func (d *mutationDef) associatedDataKey() (mutation.AssociatedDataKey, error) {
	if d.Name == "" {
		return mutation.AssociatedDataKey{}, errors.New("associated data needs a name")
	}
	if d.Locale == "" {
		return mutation.NewAssociatedDataKey(d.Name), nil
	}
	tag, err := language.Parse(d.Locale)
	if err != nil {
		return mutation.AssociatedDataKey{}, errors.Annotatef(err, "associated data %s locale", d.Name)
	}
	return mutation.NewLocalizedAssociatedDataKey(d.Name, tag), nil
}

func (d *mutationDef) priceKey() mutation.PriceKey {
	return mutation.PriceKey{PriceID: d.PriceID, PriceList: d.PriceList, Currency: d.Currency}
}

func (d *mutationDef) referenceKey() mutation.ReferenceKey {
	return mutation.ReferenceKey{Name: d.Reference, PrimaryKey: d.RefPK}
}

// attributeValue converts a decoded TOML value into an attribute value. Floats always become
// decimals, integers and strings only when a declares a decimal attribute.
func attributeValue(raw interface{}, a *schema.AttributeSchema) (interface{}, error) {
	if err := checkScalar(raw); err != nil {
		return nil, err
	}
	if f, ok := raw.(float64); ok {
		return decimal.NewFromFloat(f), nil
	}
	if a == nil || a.Type != mutation.TypeDecimal {
		return raw, nil
	}
	switch v := raw.(type) {
	case int64:
		return decimal.New(v, 0), nil
	case string:
		d, err := decimal.NewFromString(v)
		return d, errors.WithStack(err)
	}
	return raw, nil
}

func checkScalar(raw interface{}) error {
	switch raw.(type) {
	case nil:
		return errors.New("value is missing")
	case string, int64, bool, float64:
		return nil
	}
	return errors.Errorf("value %v of type %T is not supported", raw, raw)
}

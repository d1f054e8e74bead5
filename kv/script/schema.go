package script

import (
	"github.com/BurntSushi/toml"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/kv/schema"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
	"golang.org/x/text/language"
)

// schemaFile is the TOML layout of an entity schema:
//
//  name = "product"
//  locales = ["en", "cs"]
//  with-price = true
//  indexed-price-places = 2
//  evolution = ["attributes", "locales"]
//
//  [[attribute]]
//  name = "code"
//  type = "string"
//  unique = true
//
//  [[reference]]
//  name = "brand"
//  entity-type = "brand"
//  indexed = true
//    [[reference.attribute]]
//    name = "priority"
//    type = "int"
//    sortable = true
type schemaFile struct {
	Name               string          `toml:"name"`
	Locales            []string        `toml:"locales"`
	WithHierarchy      bool            `toml:"with-hierarchy"`
	WithPrice          bool            `toml:"with-price"`
	IndexedPricePlaces int             `toml:"indexed-price-places"`
	Evolution          []string        `toml:"evolution"`
	Attributes         []attributeDef  `toml:"attribute"`
	AssociatedData     []associatedDef `toml:"associated-data"`
	References         []referenceDef  `toml:"reference"`
}

type attributeDef struct {
	Name          string `toml:"name"`
	Type          string `toml:"type"`
	Unique        bool   `toml:"unique"`
	Filterable    bool   `toml:"filterable"`
	Sortable      bool   `toml:"sortable"`
	Localized     bool   `toml:"localized"`
	DecimalPlaces int    `toml:"indexed-decimal-places"`
}

type associatedDef struct {
	Name      string `toml:"name"`
	Localized bool   `toml:"localized"`
}

type referenceDef struct {
	Name         string         `toml:"name"`
	EntityType   string         `toml:"entity-type"`
	Hierarchical bool           `toml:"hierarchical"`
	Indexed      bool           `toml:"indexed"`
	Faceted      bool           `toml:"faceted"`
	Attributes   []attributeDef `toml:"attribute"`
}

var evolutionNames = map[string]schema.Evolution{
	"attributes":      schema.AddingAttributes,
	"associated-data": schema.AddingAssociatedData,
	"references":      schema.AddingReferences,
	"locales":         schema.AddingLocales,
	"all":             schema.AllEvolution,
}

// LoadSchema reads an entity schema from the TOML file at path.
func LoadSchema(path string) (*schema.EntitySchema, error) {
	var f schemaFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errors.Annotatef(err, "decode schema %s", path)
	}
	warnUndecoded(path, meta)
	return f.build()
}

// DecodeSchema reads an entity schema from TOML text.
func DecodeSchema(data string) (*schema.EntitySchema, error) {
	var f schemaFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, errors.Annotate(err, "decode schema")
	}
	return f.build()
}

func (f *schemaFile) build() (*schema.EntitySchema, error) {
	if f.Name == "" {
		return nil, errors.New("schema has no name")
	}
	s := schema.NewEntitySchema(f.Name)
	s.WithHierarchy = f.WithHierarchy
	s.WithPrice = f.WithPrice
	s.IndexedPricePlaces = f.IndexedPricePlaces
	for _, l := range f.Locales {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, errors.Annotatef(err, "schema %s locale", f.Name)
		}
		s.Locales = append(s.Locales, tag)
	}
	for _, e := range f.Evolution {
		flag, ok := evolutionNames[e]
		if !ok {
			return nil, errors.Errorf("schema %s: unknown evolution %q", f.Name, e)
		}
		s.Evolution |= flag
	}
	for i := range f.Attributes {
		a, err := f.Attributes[i].build()
		if err != nil {
			return nil, errors.Annotatef(err, "schema %s", f.Name)
		}
		s.AddAttribute(a)
	}
	for _, d := range f.AssociatedData {
		if d.Name == "" {
			return nil, errors.Errorf("schema %s: associated data without name", f.Name)
		}
		s.AddAssociatedData(&schema.AssociatedDataSchema{Name: d.Name, Localized: d.Localized})
	}
	for _, r := range f.References {
		if r.Name == "" || r.EntityType == "" {
			return nil, errors.Errorf("schema %s: reference needs a name and an entity type", f.Name)
		}
		rs := &schema.ReferenceSchema{
			Name:                   r.Name,
			ReferencedEntityType:   r.EntityType,
			ReferencedHierarchical: r.Hierarchical,
			Indexed:                r.Indexed,
			Faceted:                r.Faceted,
			Attributes:             make(map[string]*schema.AttributeSchema, len(r.Attributes)),
		}
		for i := range r.Attributes {
			a, err := r.Attributes[i].build()
			if err != nil {
				return nil, errors.Annotatef(err, "schema %s reference %s", f.Name, r.Name)
			}
			rs.Attributes[a.Name] = a
		}
		s.AddReference(rs)
	}
	return s, nil
}

func (d *attributeDef) build() (*schema.AttributeSchema, error) {
	if d.Name == "" {
		return nil, errors.New("attribute without name")
	}
	t, err := mutation.ParseValueType(d.Type)
	if err != nil {
		return nil, errors.Annotatef(err, "attribute %s", d.Name)
	}
	return &schema.AttributeSchema{
		Name:                 d.Name,
		Type:                 t,
		Unique:               d.Unique,
		Filterable:           d.Filterable,
		Sortable:             d.Sortable,
		Localized:            d.Localized,
		IndexedDecimalPlaces: d.DecimalPlaces,
	}, nil
}

func warnUndecoded(path string, meta toml.MetaData) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warnf("%s contains unknown items %v", path, undecoded)
	}
}

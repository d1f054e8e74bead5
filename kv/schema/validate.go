package schema

import (
	"fmt"

	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap-incubator/tinydoc/log"
	"golang.org/x/text/language"
)

// Validate checks the whole mutation stream before any of it is applied. Definitions missing from the
// schema are added when the evolution flags allow it, but only once the complete stream is valid, so
// a rejected stream leaves the schema untouched.
func (s *EntitySchema) Validate(mutations []mutation.LocalMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &validator{
		schema:         s,
		attributes:     s.attributes,
		associatedData: s.associatedData,
		references:     s.references,
		locales:        s.Locales,
	}
	for _, m := range mutations {
		if err := v.validate(m); err != nil {
			return err
		}
	}
	v.commit()
	return nil
}

// validator works on copy-on-write views of the schema maps.
type validator struct {
	schema *EntitySchema

	attributes     map[string]*AttributeSchema
	associatedData map[string]*AssociatedDataSchema
	references     map[string]*ReferenceSchema
	locales        []language.Tag

	attributesCopied     bool
	associatedDataCopied bool
	referencesCopied     bool
	localesCopied        bool

	evolved []string
}

func (v *validator) violation(subject, reason string, args ...interface{}) *ViolationError {
	return v.schema.violation(subject, fmt.Sprintf(reason, args...))
}

func (v *validator) validate(m mutation.LocalMutation) error {
	s := v.schema
	switch m := m.(type) {
	case mutation.UpsertAttribute, mutation.RemoveAttribute, mutation.ApplyDeltaAttribute:
		return v.validateAttribute(m.(mutation.AttributeMutation), v.entityScope())
	case mutation.UpsertPrice, mutation.RemovePrice, mutation.SetPriceInnerRecordHandling:
		if !s.WithPrice {
			return v.violation("prices", "are not allowed for %s", m.Kind())
		}
		if up, ok := m.(mutation.UpsertPrice); ok && up.Validity != nil && !up.Validity.From.IsZero() &&
			!up.Validity.To.IsZero() && up.Validity.To.Before(up.Validity.From) {
			return v.violation("price "+up.Key.String(), "has validity ending before it starts")
		}
		return nil
	case mutation.InsertReference:
		r, err := v.reference(m.Key.Name, m.ReferencedEntityType)
		if err != nil {
			return err
		}
		if m.ReferencedEntityType != "" && r.ReferencedEntityType != "" && r.ReferencedEntityType != m.ReferencedEntityType {
			return v.violation("reference "+m.Key.Name, "references %s, not %s", r.ReferencedEntityType, m.ReferencedEntityType)
		}
		return nil
	case mutation.RemoveReference:
		return v.existingReference(m.Key.Name)
	case mutation.UpsertReferenceGroup:
		return v.existingReference(m.Key.Name)
	case mutation.RemoveReferenceGroup:
		return v.existingReference(m.Key.Name)
	case mutation.UpdateReferenceAttribute:
		if m.Attribute == nil {
			return v.violation("reference "+m.Key.Name, "attribute mutation is missing")
		}
		if _, err := v.reference(m.Key.Name, ""); err != nil {
			return err
		}
		return v.validateAttribute(m.Attribute, v.referenceScope(m.Key.Name))
	case mutation.SetHierarchyPlacement, mutation.RemoveHierarchyPlacement:
		if !s.WithHierarchy {
			return v.violation("hierarchy placement", "is not allowed, %s is not hierarchical", s.Name)
		}
		return nil
	case mutation.UpsertAssociatedData:
		if mutation.TypeOf(m.Value) == mutation.TypeUnknown {
			return v.violation("associated data "+m.Key.String(), "has unsupported value %T", m.Value)
		}
		d, ok := v.associatedData[m.Key.Name]
		if !ok {
			if !s.Evolution.Allows(AddingAssociatedData) {
				return v.violation("associated data "+m.Key.Name, "is not defined")
			}
			d = &AssociatedDataSchema{Name: m.Key.Name, Localized: m.Key.Localized()}
			v.addAssociatedData(d)
		}
		return v.checkLocale("associated data "+m.Key.Name, d.Localized, m.Key.Locale)
	case mutation.RemoveAssociatedData:
		d, ok := v.associatedData[m.Key.Name]
		if !ok {
			return v.violation("associated data "+m.Key.Name, "is not defined")
		}
		return v.checkLocale("associated data "+m.Key.Name, d.Localized, m.Key.Locale)
	default:
		log.Panicf("unknown mutation %T", m)
	}
	return nil
}

type attributeScope struct {
	subject string
	get     func(name string) *AttributeSchema
	add     func(a *AttributeSchema)
}

func (v *validator) entityScope() attributeScope {
	return attributeScope{
		subject: "attribute ",
		get:     func(name string) *AttributeSchema { return v.attributes[name] },
		add:     v.addAttribute,
	}
}

func (v *validator) referenceScope(reference string) attributeScope {
	return attributeScope{
		subject: "reference " + reference + " attribute ",
		get: func(name string) *AttributeSchema {
			return v.references[reference].Attributes[name]
		},
		add: func(a *AttributeSchema) {
			v.putReference(v.references[reference].withAttribute(a))
			v.evolved = append(v.evolved, "reference "+reference+" attribute "+a.Name)
		},
	}
}

func (v *validator) validateAttribute(m mutation.AttributeMutation, scope attributeScope) error {
	key := m.AttributeKey()
	subject := scope.subject + key.Name
	a := scope.get(key.Name)

	var valueType mutation.ValueType
	switch m := m.(type) {
	case mutation.UpsertAttribute:
		valueType = mutation.TypeOf(m.Value)
		if valueType == mutation.TypeUnknown {
			return v.violation(subject, "has unsupported value %T", m.Value)
		}
	case mutation.ApplyDeltaAttribute:
		valueType = mutation.TypeOf(m.Delta)
		if !valueType.Numeric() {
			return v.violation(subject, "delta %v is not numeric", m.Delta)
		}
	case mutation.RemoveAttribute:
		if a == nil {
			return v.violation(subject, "is not defined")
		}
		return v.checkLocale(subject, a.Localized, key.Locale)
	}

	if a == nil {
		if !v.schema.Evolution.Allows(AddingAttributes) {
			return v.violation(subject, "is not defined")
		}
		a = &AttributeSchema{Name: key.Name, Type: valueType, Localized: key.Localized()}
		scope.add(a)
	}
	if a.Type != valueType {
		return v.violation(subject, "expects %s values, got %s", a.Type, valueType)
	}
	if _, ok := m.(mutation.ApplyDeltaAttribute); ok && !a.Type.Numeric() {
		return v.violation(subject, "is not numeric")
	}
	return v.checkLocale(subject, a.Localized, key.Locale)
}

func (v *validator) checkLocale(subject string, localized bool, locale language.Tag) error {
	if localized && locale == language.Und {
		return v.violation(subject, "is localized, its values must carry a locale")
	}
	if !localized && locale != language.Und {
		return v.violation(subject, "is not localized, its values must not carry locale %s", locale)
	}
	if locale == language.Und || containsLocale(v.locales, locale) {
		return nil
	}
	if !v.schema.Evolution.Allows(AddingLocales) {
		return v.violation(subject, "uses locale %s which is not allowed", locale)
	}
	if !v.localesCopied {
		v.locales = append([]language.Tag(nil), v.locales...)
		v.localesCopied = true
	}
	v.locales = append(v.locales, locale)
	v.evolved = append(v.evolved, "locale "+locale.String())
	return nil
}

func (v *validator) reference(name, referencedType string) (*ReferenceSchema, error) {
	if r, ok := v.references[name]; ok {
		return r, nil
	}
	if !v.schema.Evolution.Allows(AddingReferences) {
		return nil, v.violation("reference "+name, "is not defined")
	}
	r := &ReferenceSchema{
		Name:                 name,
		ReferencedEntityType: referencedType,
		Attributes:           make(map[string]*AttributeSchema),
	}
	v.putReference(r)
	v.evolved = append(v.evolved, "reference "+name)
	return r, nil
}

func (v *validator) existingReference(name string) error {
	if _, ok := v.references[name]; !ok {
		return v.violation("reference "+name, "is not defined")
	}
	return nil
}

func (v *validator) addAttribute(a *AttributeSchema) {
	if !v.attributesCopied {
		v.attributes = copyAttributes(v.attributes)
		v.attributesCopied = true
	}
	v.attributes[a.Name] = a
	v.evolved = append(v.evolved, "attribute "+a.Name)
}

func (v *validator) addAssociatedData(d *AssociatedDataSchema) {
	if !v.associatedDataCopied {
		m := make(map[string]*AssociatedDataSchema, len(v.associatedData)+1)
		for k, d := range v.associatedData {
			m[k] = d
		}
		v.associatedData = m
		v.associatedDataCopied = true
	}
	v.associatedData[d.Name] = d
	v.evolved = append(v.evolved, "associated data "+d.Name)
}

func (v *validator) putReference(r *ReferenceSchema) {
	if !v.referencesCopied {
		m := make(map[string]*ReferenceSchema, len(v.references)+1)
		for k, r := range v.references {
			m[k] = r
		}
		v.references = m
		v.referencesCopied = true
	}
	v.references[r.Name] = r
}

func (v *validator) commit() {
	s := v.schema
	s.attributes = v.attributes
	s.associatedData = v.associatedData
	s.references = v.references
	s.Locales = v.locales
	for _, what := range v.evolved {
		logEvolution(s.Name, what)
	}
}

func copyAttributes(src map[string]*AttributeSchema) map[string]*AttributeSchema {
	m := make(map[string]*AttributeSchema, len(src)+1)
	for k, a := range src {
		m[k] = a
	}
	return m
}

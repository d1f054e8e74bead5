package indexer

import (
	"fmt"

	"github.com/pingcap-incubator/tinydoc/kv/index"
	"github.com/pingcap-incubator/tinydoc/kv/mutation"
	"github.com/pingcap/errors"
	"golang.org/x/text/language"
)

func inconsistent(key index.Key, format string, args ...interface{}) error {
	return errors.WithStack(&index.ConsistencyError{Index: key, Reason: fmt.Sprintf(format, args...)})
}

// localeExclusion names the values which are about to disappear and must not keep a locale alive.
type localeExclusion struct {
	attribute          *mutation.AttributeKey
	associatedData     *mutation.AssociatedDataKey
	reference          *mutation.ReferenceKey
	referenceAttribute *mutation.AttributeKey
}

// localeInUse scans the record of the entity for any existing localized value in locale other than
// the excluded ones. Attributes of references which are not indexed never registered their locale
// and are skipped.
func (e *Executor) localeInUse(locale language.Tag, ex localeExclusion) (bool, error) {
	body, err := e.containers.Body(e.pk)
	if err != nil {
		return false, err
	}
	for _, k := range body.AssociatedDataKeys {
		if k.Locale == locale && (ex.associatedData == nil || *ex.associatedData != k) {
			return true, nil
		}
	}
	attrs, err := e.containers.Attributes(e.pk, locale)
	if err != nil {
		return false, err
	}
	for _, v := range attrs.Live() {
		if ex.attribute == nil || *ex.attribute != v.Key {
			return true, nil
		}
	}
	refs, err := e.containers.References(e.pk)
	if err != nil {
		return false, err
	}
	for _, r := range refs.Live() {
		rs, err := e.schema.Reference(r.Key.Name)
		if err != nil {
			return false, err
		}
		if !rs.Indexed {
			continue
		}
		for k, v := range r.Attributes {
			if k.Locale != locale || !v.Exists() {
				continue
			}
			if ex.reference != nil && *ex.reference == r.Key &&
				(ex.referenceAttribute == nil || *ex.referenceAttribute == k) {
				continue
			}
			return true, nil
		}
	}
	return false, nil
}

// registerLocale registers locale for the entity in the Global partition and in every attached
// reference partition.
func (e *Executor) registerLocale(locale language.Tag) error {
	partitions, err := e.localePartitions()
	if err != nil {
		return err
	}
	for _, idx := range partitions {
		idx.RegisterLocale(e.pk, locale)
	}
	return nil
}

// releaseLocale deregisters locale unless a value outside of the exclusion still uses it.
func (e *Executor) releaseLocale(locale language.Tag, ex localeExclusion) error {
	used, err := e.localeInUse(locale, ex)
	if err != nil || used {
		return err
	}
	partitions, err := e.localePartitions()
	if err != nil {
		return err
	}
	for _, idx := range partitions {
		if idx.HasLocale(e.pk, locale) {
			if err := idx.UnregisterLocale(e.pk, locale); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) localePartitions() ([]*index.EntityIndex, error) {
	refs, err := e.referencePartitions()
	if err != nil {
		return nil, err
	}
	return append([]*index.EntityIndex{e.global()}, refs...), nil
}

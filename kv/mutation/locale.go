package mutation

import (
	"github.com/pingcap-incubator/tinydoc/kv/util/codec"
	"github.com/pingcap/errors"
	"golang.org/x/text/language"
)

// language.Tag keeps its state unexported, so the keys carrying one are stored as the memcomparable
// name followed by the BCP 47 text of the locale.

func (k AttributeKey) GobEncode() ([]byte, error) {
	return encodeLocalized(k.Name, k.Locale)
}

func (k *AttributeKey) GobDecode(data []byte) (err error) {
	k.Name, k.Locale, err = decodeLocalized(data)
	return
}

func (k AssociatedDataKey) GobEncode() ([]byte, error) {
	return encodeLocalized(k.Name, k.Locale)
}

func (k *AssociatedDataKey) GobDecode(data []byte) (err error) {
	k.Name, k.Locale, err = decodeLocalized(data)
	return
}

func encodeLocalized(name string, locale language.Tag) ([]byte, error) {
	text, err := locale.MarshalText()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return codec.EncodeBytes(codec.EncodeBytes(nil, []byte(name)), text), nil
}

func decodeLocalized(data []byte) (string, language.Tag, error) {
	data, name, err := codec.DecodeBytes(data)
	if err != nil {
		return "", language.Und, errors.Annotate(err, "decode key name")
	}
	_, text, err := codec.DecodeBytes(data)
	if err != nil {
		return "", language.Und, errors.Annotate(err, "decode key locale")
	}
	locale, err := UnmarshalLocale(text)
	return string(name), locale, err
}

// MarshalLocales returns the BCP 47 text of every locale.
func MarshalLocales(locales []language.Tag) []string {
	res := make([]string, 0, len(locales))
	for _, l := range locales {
		res = append(res, l.String())
	}
	return res
}

// UnmarshalLocales is the inverse of MarshalLocales.
func UnmarshalLocales(texts []string) ([]language.Tag, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	res := make([]language.Tag, 0, len(texts))
	for _, s := range texts {
		l, err := UnmarshalLocale([]byte(s))
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, nil
}

func UnmarshalLocale(text []byte) (language.Tag, error) {
	var l language.Tag
	if err := l.UnmarshalText(text); err != nil {
		return language.Und, errors.Annotatef(err, "invalid locale %q", text)
	}
	return l, nil
}

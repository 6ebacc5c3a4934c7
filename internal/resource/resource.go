// Package resource identifies logical upstream requests.
package resource

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
)

// Kind names a family of upstream resources.
type Kind string

const (
	KindGlobal  Kind = "global"
	KindTop     Kind = "top"
	KindChart   Kind = "chart"
	KindDetails Kind = "details"
	KindNews    Kind = "news"
)

// Key identifies one logical data request: a kind plus its parameters.
// Two keys with the same kind and parameters share one canonical string and
// therefore one cache slot.
type Key struct {
	kind   Kind
	params map[string]string
	id     string
}

// NewKey builds a Key. params is copied; empty values are kept.
func NewKey(kind Kind, params map[string]string) Key {
	copied := maps.Clone(params)
	if copied == nil {
		copied = map[string]string{}
	}
	return Key{kind: kind, params: copied, id: canonical(kind, copied)}
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	kind, query, _ := strings.Cut(s, "?")
	if kind == "" {
		return Key{}, fmt.Errorf("parsing resource key %q: missing kind", s)
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return Key{}, fmt.Errorf("parsing resource key %q: %w", s, err)
	}
	params := make(map[string]string, len(values))
	for name, vs := range values {
		if len(vs) > 0 {
			params[name] = vs[0]
		}
	}
	return NewKey(Kind(kind), params), nil
}

func canonical(kind Kind, params map[string]string) string {
	if len(params) == 0 {
		return string(kind)
	}
	values := make(url.Values, len(params))
	for name, v := range params {
		values.Set(name, v)
	}
	// Encode sorts by parameter name.
	return string(kind) + "?" + values.Encode()
}

func (k Key) Kind() Kind {
	return k.kind
}

// Param returns the named parameter or "".
func (k Key) Param(name string) string {
	return k.params[name]
}

// Params returns a copy of the parameter map.
func (k Key) Params() map[string]string {
	return maps.Clone(k.params)
}

// With returns a new Key with one parameter overridden.
func (k Key) With(name, value string) Key {
	params := maps.Clone(k.params)
	if params == nil {
		params = map[string]string{}
	}
	params[name] = value
	return NewKey(k.kind, params)
}

func (k Key) String() string {
	return k.id
}

// IsZero reports whether k was never constructed.
func (k Key) IsZero() bool {
	return k.id == ""
}

// Equal compares canonical forms.
func (k Key) Equal(other Key) bool {
	return k.id == other.id
}

package sqlgen

import (
	"fmt"
	"strings"
)

// Filter is an optional IN-list filter. A nil *Filter means no filter was
// requested; a non-nil Filter with no values was requested but matches
// nothing to render.
type Filter struct {
	Values []string
}

// NewFilter returns a filter over values.
func NewFilter(values ...string) *Filter {
	return &Filter{Values: append([]string(nil), values...)}
}

func (f *Filter) active() bool {
	return f != nil && len(f.Values) > 0
}

// RenderList lower-cases and single-quotes every value and joins them with
// ", ". Duplicates are kept.
func RenderList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, quoteLiteral(strings.ToLower(value)))
	}
	return strings.Join(quoted, ", ")
}

// RenderValues is RenderList for untyped input such as decoded YAML or JSON.
// Any non-string element is rejected.
func RenderValues(values []any) (string, error) {
	strs, err := stringValues(values)
	if err != nil {
		return "", err
	}
	return RenderList(strs), nil
}

func stringValues(values []any) ([]string, error) {
	strs := make([]string, 0, len(values))
	for _, value := range values {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expecting a string value, got %T %v", ErrInvalidArgument, value, value)
		}
		strs = append(strs, s)
	}
	return strs, nil
}

func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

package querycache

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies one cached query result: a resource path followed by its
// scope parameters, e.g. ["/table", "1", "2024-01-01"].
type Key []string

// NewKey renders scope parameters so that the same resource and scope always
// produce an identical key regardless of the caller's value types.
func NewKey(path string, scope ...any) Key {
	k := make(Key, 0, len(scope)+1)
	k = append(k, path)
	for _, s := range scope {
		k = append(k, formatParam(s))
	}

	return k
}

func formatParam(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Path returns the resource path.
func (k Key) Path() string {
	if len(k) == 0 {
		return ""
	}

	return k[0]
}

// String returns a stable map key.
func (k Key) String() string {
	return strings.Join(k, "|")
}

// HasPrefix reports whether every element of prefix equals the element of k
// at the same position.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}

	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}

	return true
}

// Equal reports whether both keys have the same elements.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

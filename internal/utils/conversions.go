package utils

import (
	"fmt"
	"sort"
)

// Messages flattens a decoded JSON value (string, array or nested object) into its
// string leaves. Object members are visited in key order.
func Messages(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, Messages(item)...)
		}
		return out
	case []string:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(t))
		for _, k := range keys {
			out = append(out, Messages(t[k])...)
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

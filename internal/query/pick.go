package query

import "encoding/json"

// Pick projects items to the given JSON keys.  It is used for responses of
// queries with an explicit field selection, so that unselected attributes
// are absent instead of zero valued.
func Pick[T any](items []T, keep []string) ([]map[string]any, error) {
	want := make(map[string]bool, len(keep))
	for _, k := range keep {
		want[k] = true
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		for k := range m {
			if !want[k] {
				delete(m, k)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"rcaflow/pkg/platform/sentinel"
)

func notFound(collection, id string) error {
	return fmt.Errorf("%s/%s: %w", collection, id, sentinel.ErrNotFound)
}

func conflict(collection, id string) error {
	return fmt.Errorf("%s/%s: %w", collection, id, sentinel.ErrConflict)
}

// filterObject renders the filters as one JSON object, the shape used for
// Postgres containment and Mongo equality queries. Values go through JSON so
// typed ids and enums compare in their stored form.
func filterObject(filters []Filter) ([]byte, error) {
	obj := make(map[string]any, len(filters))
	for _, f := range filters {
		obj[f.Field] = f.Value
	}
	return json.Marshal(obj)
}

// normalized decodes the filters back so they compare with decoded bodies.
func normalized(filters []Filter) (map[string]any, error) {
	raw, err := filterObject(filters)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(doc, want map[string]any) bool {
	for k, v := range want {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}

type decodedDoc struct {
	id     string
	fields map[string]any
	body   []byte
}

// applyQuery filters, orders and limits decoded documents in memory.
// Documents are sorted by id first so results are deterministic.
func applyQuery(docs []decodedDoc, q Query) ([][]byte, error) {
	want, err := normalized(q.Filters)
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].id < docs[j].id })

	var hits []decodedDoc
	for _, d := range docs {
		if matches(d.fields, want) {
			hits = append(hits, d)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(hits, func(i, j int) bool {
			c := compareValues(hits[i].fields[q.OrderBy], hits[j].fields[q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([][]byte, len(hits))
	for i, h := range hits {
		out[i] = h.body
	}
	return out, nil
}

// compareValues orders JSON scalars: missing/null first, then numbers,
// strings and booleans within their own kind.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	if b == nil {
		return 1
	}
	return 0
}

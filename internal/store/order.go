package store

import (
	"sort"

	"github.com/tidwall/gjson"
)

// SortByField orders docs by the JSON child field, ties broken by key.
// Missing or null values sort first, then false, true, numbers, strings and objects.
func SortByField(docs []Doc, field string) {
	values := make([]gjson.Result, len(docs))
	for i, d := range docs {
		values[i] = gjson.GetBytes(d.Value, field)
	}
	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c := compareValues(values[idx[a]], values[idx[b]])
		if c != 0 {
			return c < 0
		}
		return docs[idx[a]].Key < docs[idx[b]].Key
	})
	sorted := make([]Doc, len(docs))
	for i, j := range idx {
		sorted[i] = docs[j]
	}
	copy(docs, sorted)
}

func typeRank(v gjson.Result) int {
	if !v.Exists() {
		return 0
	}
	switch v.Type {
	case gjson.Null:
		return 0
	case gjson.False:
		return 1
	case gjson.True:
		return 2
	case gjson.Number:
		return 3
	case gjson.String:
		return 4
	default:
		return 5
	}
}

func compareValues(a, b gjson.Result) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 3:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
	case 4, 5:
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
	}
	return 0
}

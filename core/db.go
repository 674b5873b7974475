package core

import "strings"

// DBOrdering is one "ORDER BY" term requested by API clients.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderByClause renders orderings whose field is allowed, falling back to `fallback` when none is.
func OrderByClause(orderings []DBOrdering, allowed map[string]string, fallback string) string {
	terms := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := allowed[ord.Field]; ok {
			terms = append(terms, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(terms) == 0 {
		return fallback
	}
	return strings.Join(terms, ", ")
}

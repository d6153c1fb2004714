package core

import "strings"

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

// ParseOrdering parses a `field,-other` ordering expression.
// Only fields present in `columns` (API name -> column) are kept.
func ParseOrdering(expr string, columns map[string]string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(expr, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		col, ok := columns[field]
		if !ok {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: col, Ascending: !descending})
	}
	return orderings
}

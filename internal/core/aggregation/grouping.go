package aggregation

// Grouping folds rows of type R into one table.
type Grouping[R any] interface {
	fold(row R)
}

type grouping[R any, K comparable] struct {
	table  *Table[K]
	key    func(R) (K, bool)
	values func(R) Values
}

func (g grouping[R, K]) fold(row R) {
	k, ok := g.key(row)
	if !ok {
		g.table.discarded++
		return
	}
	g.table.Fold(k, g.values(row))
}

// By binds a table to a key extractor and a value extractor. The key function
// returns false for rows it cannot resolve; those rows are discarded.
func By[R any, K comparable](table *Table[K], key func(R) (K, bool), values func(R) Values) Grouping[R] {
	return grouping[R, K]{table: table, key: key, values: values}
}

// FoldAll folds every row into every grouping in one pass.
func FoldAll[R any](rows []R, groupings ...Grouping[R]) {
	for _, row := range rows {
		for _, g := range groupings {
			g.fold(row)
		}
	}
}

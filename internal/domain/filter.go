package domain

// Typed widget list filter. Raw caller params are translated into tagged
// terms over a fixed set of recognized fields; unrecognized input never
// reaches the store.

type FilterOp string

const (
	// OpStringMatch is a case-insensitive substring match.
	OpStringMatch FilterOp = "string_match"
	// OpExact is an exact equality match.
	OpExact FilterOp = "exact"
	// OpIn is set membership over scalar columns.
	OpIn FilterOp = "in"
	// OpArrayAll requires an array column to contain every value.
	OpArrayAll FilterOp = "array_all"
	// OpArrayAny requires an array column to contain at least one value.
	OpArrayAny FilterOp = "array_any"
)

type FilterTerm struct {
	Field  string
	Op     FilterOp
	Values []string
}

// WidgetFilter restricts a widget listing. IDs, when non-nil, is an
// allow-list the result is additionally restricted to; an empty non-nil
// allow-list matches nothing.
type WidgetFilter struct {
	Terms []FilterTerm
	IDs   []string
}

func (f WidgetFilter) WithTerm(field string, op FilterOp, values ...string) WidgetFilter {
	f.Terms = append(f.Terms, FilterTerm{Field: field, Op: op, Values: values})
	return f
}

type SortKey struct {
	Field string
	Desc  bool
}

type Page struct {
	Number int
	Size   int
}

func (p Page) Normalized() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 10
	}
	if p.Size > 100 {
		p.Size = 100
	}
	return p
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

package model

// Query is a filter over a single collection.
// An empty Where matches every document.
type Query struct {
	Where   []Filter `json:"where,omitempty"`
	OrderBy []Order  `json:"orderBy,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
}

// Filter represents a single where clause.
type Filter struct {
	Field    string      `json:"field"`
	Operator string      `json:"op"`
	Value    interface{} `json:"value"`
}

// Order represents a single ordering condition in a query.
type Order struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

const (
	// Ascending is used for ordering in ascending order.
	Ascending = "asc"
	// Descending is used for ordering in descending order.
	Descending = "desc"
)

// Operator types for filters
const (
	OperatorEqual              = "=="
	OperatorNotEqual           = "!="
	OperatorLessThan           = "<"
	OperatorLessThanOrEqual    = "<="
	OperatorGreaterThan        = ">"
	OperatorGreaterThanOrEqual = ">="
	OperatorArrayContains      = "array-contains"
	OperatorArrayContainsAny   = "array-contains-any"
	OperatorIn                 = "in"
	OperatorNotIn              = "not-in"
)

// Where starts a query with one clause
func Where(field, op string, value interface{}) Query {
	return Query{Where: []Filter{{Field: field, Operator: op, Value: value}}}
}

// And appends a clause
func (q Query) And(field, op string, value interface{}) Query {
	q.Where = append(append([]Filter(nil), q.Where...), Filter{Field: field, Operator: op, Value: value})
	return q
}

// Order appends an ordering
func (q Query) Order(field, direction string) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Field: field, Direction: direction})
	return q
}

// WithLimit sets the limit
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// IsMatchAll reports a query without any where clause
func (q Query) IsMatchAll() bool {
	return len(q.Where) == 0
}

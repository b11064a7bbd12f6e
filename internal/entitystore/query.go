package entitystore

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FetchOption narrows or orders a Fetch.
type FetchOption func(*query)

type predicate struct {
	expr string
	args []any
}

type query struct {
	where []predicate
	order []clause.OrderByColumn
	limit int
}

// Where filters records with an engine-level condition, e.g. Where("product_id = ?", id).
// Multiple predicates are ANDed.
func Where(expr string, args ...any) FetchOption {
	return func(q *query) {
		q.where = append(q.where, predicate{expr: expr, args: args})
	}
}

// SortBy orders results by column. Calls apply in order, so the first SortBy is
// the primary key of the sort.
func SortBy(column string, descending bool) FetchOption {
	return func(q *query) {
		q.order = append(q.order, clause.OrderByColumn{
			Column: clause.Column{Name: column},
			Desc:   descending,
		})
	}
}

// Limit caps the number of returned records.
func Limit(n int) FetchOption {
	return func(q *query) {
		q.limit = n
	}
}

func buildQuery(opts []FetchOption) query {
	var q query
	for _, opt := range opts {
		if opt != nil {
			opt(&q)
		}
	}
	return q
}

func (q query) apply(tx *gorm.DB) *gorm.DB {
	for _, p := range q.where {
		tx = tx.Where(p.expr, p.args...)
	}
	for _, o := range q.order {
		tx = tx.Order(o)
	}
	if q.limit > 0 {
		tx = tx.Limit(q.limit)
	}
	return tx
}

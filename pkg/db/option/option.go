package option

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type SortBy struct {
	Column string
	Desc   bool
}

// Sort is an ordered list of ORDER BY terms.
type Sort []SortBy

// Then appends a tie-breaker unless the column is already sorted on.
func (s Sort) Then(column string, desc bool) Sort {
	for _, item := range s {
		if item.Column == column {
			return s
		}
	}
	return append(s, SortBy{Column: column, Desc: desc})
}

// WithQuerySortBy resolves a caller supplied sort field through allowed, which maps
// public field names to columns. Unknown fields yield an empty Sort.
func WithQuerySortBy(sortBy, orderBy string, allowed map[string]string) Sort {
	column, ok := allowed[strings.TrimSpace(sortBy)]
	if !ok || column == "" {
		return nil
	}
	return Sort{{Column: column, Desc: strings.EqualFold(strings.TrimSpace(orderBy), "desc")}}
}

func WithSortBy(sort Sort) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		for _, item := range sort {
			db = db.Order(clause.OrderByColumn{
				Column: clause.Column{Name: item.Column},
				Desc:   item.Desc,
			})
		}
		return db
	})
}

func WithPreload(associations ...string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		for _, association := range associations {
			db = db.Preload(association)
		}
		return db
	})
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ContainsPattern wraps s for a substring LIKE under ESCAPE '!', so wildcards
// in s match literally.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// WithKeyword keeps rows where any of columns contains keyword.
func WithKeyword(keyword string, columns ...string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if keyword == "" || len(columns) == 0 {
			return db
		}
		pattern := ContainsPattern(keyword)
		conds := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, column := range columns {
			conds = append(conds, column+" LIKE ? ESCAPE '!'")
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	})
}

package pagination

import (
	"errors"

	"github.com/smallbiznis/catalog/pkg/db/option"
	"gorm.io/gorm"
)

var (
	ErrInvalidPage     = errors.New("invalid_page")
	ErrInvalidPageSize = errors.New("invalid_page_size")
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Info describes the page that was returned.
type Info struct {
	Current  int   `json:"current"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	HasMore  bool  `json:"hasMore"`
}

// Normalize applies defaults to unset values and rejects out of range ones.
func Normalize(number, size, defaultSize, maxSize int) (Page, error) {
	if number == 0 {
		number = 1
	}
	if number < 1 {
		return Page{}, ErrInvalidPage
	}
	if size == 0 {
		size = defaultSize
	}
	if size < 1 || size > maxSize {
		return Page{}, ErrInvalidPageSize
	}
	return Page{Number: number, Size: size}, nil
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Page) Info(total int64) Info {
	return Info{
		Current:  p.Number,
		PageSize: p.Size,
		Total:    total,
		HasMore:  int64(p.Offset()+p.Size) < total,
	}
}

// Paginate counts the rows matched by stmt, then loads one page of them.
// Ordering and preloads are passed as opts so they never reach the COUNT query.
func Paginate[T any](stmt *gorm.DB, page Page, opts ...option.QueryOption) ([]*T, Info, error) {
	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Info{}, err
	}

	items := make([]*T, 0, page.Size)
	if total == 0 || int64(page.Offset()) >= total {
		return items, page.Info(total), nil
	}

	query := stmt.Session(&gorm.Session{})
	for _, opt := range opts {
		query = opt.Apply(query)
	}
	if err := query.Offset(page.Offset()).Limit(page.Size).Find(&items).Error; err != nil {
		return nil, Info{}, err
	}
	return items, page.Info(total), nil
}

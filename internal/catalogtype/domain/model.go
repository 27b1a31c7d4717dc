package domain

import (
	"regexp"
	"time"
)

const (
	MaxCodeLength = 50
	MaxNameLength = 100
)

var codePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// CatalogType is a classification scheme owning a family of catalog trees.
type CatalogType struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Code        string    `json:"code" gorm:"type:varchar(50);not null;uniqueIndex:ux_catalog_types_code"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	Enabled     bool      `json:"enabled" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (CatalogType) TableName() string { return "catalog_types" }

// ValidCode reports whether code is 1..50 characters of [a-z0-9_].
func ValidCode(code string) bool {
	return len(code) <= MaxCodeLength && codePattern.MatchString(code)
}

// TimeLayout renders timestamps as "YYYY-MM-DD HH:MM:SS".
const TimeLayout = "2006-01-02 15:04:05"

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

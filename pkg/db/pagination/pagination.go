package pagination

import "gorm.io/gorm"

// Offset is limit/offset paging for list endpoints.
type Offset struct {
	Limit  int
	Offset int
}

// Apply adds LIMIT and OFFSET to stmt. A non-positive limit leaves the
// statement unbounded.
func (p Offset) Apply(stmt *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		stmt = stmt.Limit(p.Limit)
	}
	if p.Offset > 0 {
		stmt = stmt.Offset(p.Offset)
	}
	return stmt
}

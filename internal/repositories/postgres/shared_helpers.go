package postgres

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var testSortColumns = map[string]bool{
	"created_at": true,
	"name":       true,
}

// applyPagination clamps limit/offset to sane bounds and applies them.
func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}

// textArrayLiteral renders a postgres text[] literal for ?::text[] binds.
func textArrayLiteral(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted[i] = `"` + v + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

// applySort orders by a whitelisted column, defaulting to newest first.
func applySort(query *gorm.DB, sortBy, sortOrder string, allowed map[string]bool) *gorm.DB {
	if !allowed[sortBy] {
		sortBy = "created_at"
	}
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	return query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))
}

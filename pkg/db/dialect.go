package db

import (
	"strings"

	"gorm.io/gorm"
)

// LikeOperator returns the case-insensitive pattern operator for conn's
// dialect. sqlite LIKE already ignores ASCII case.
func LikeOperator(conn *gorm.DB) string {
	if conn != nil && conn.Dialector != nil && conn.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

// ContainsPattern escapes LIKE wildcards in term and wraps it in %...%.
func ContainsPattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(term))
	return "%" + escaped + "%"
}

package repository

import (
	"fmt"

	"github.com/maktab-hq/maktab-api/internal/models"
)

// scopeClause appends a campus predicate for the tenant scope unless the
// caller holds an all-campus scope. The column must include its table alias
// when the query joins multiple tables.
func scopeClause(scope models.TenantScope, column string, args []interface{}) (string, []interface{}) {
	if scope.AllCampuses {
		return "", args
	}
	args = append(args, scope.CampusID)
	return fmt.Sprintf(" AND %s = $%d", column, len(args)), args
}

package postgres

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/lib/pq"
)

// buildEvaluationFilterClause constructs the WHERE conditions of an
// evaluation query, numbering placeholders from startIndex.
func buildEvaluationFilterClause(filter domain.EvaluationFilter, startIndex int) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	idx := startIndex

	if filter.Type != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(type) = LOWER($%d)", idx))
		args = append(args, filter.Type)
		idx++
	}
	if filter.ABC != "" {
		clauses = append(clauses, fmt.Sprintf("abc = $%d", idx))
		args = append(args, strings.ToUpper(filter.ABC))
		idx++
	}
	if filter.XYZ != "" {
		clauses = append(clauses, fmt.Sprintf("xyz = $%d", idx))
		args = append(args, strings.ToUpper(filter.XYZ))
		idx++
	}
	if len(filter.Codes) > 0 {
		clauses = append(clauses, fmt.Sprintf("code = ANY($%d)", idx))
		args = append(args, pq.Array(filter.Codes))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

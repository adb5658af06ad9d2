package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// UpsertSQL builds a multi-row INSERT ... ON CONFLICT DO UPDATE statement
// plus its flattened argument list. Used for the canonical snapshot, where
// the whole batch replaces matching (entity_key, observed_day) rows.
func UpsertSQL(table string, columns, conflictKeys []string, rows [][]any) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(rows)*len(columns))

	sb.WriteString("INSERT INTO ")
	sb.WriteString(sanitizeTable(table))
	sb.WriteString(" (")
	sb.WriteString(quoteAndJoin(columns))
	sb.WriteString(") VALUES ")

	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+j+1)
		}
		sb.WriteString(")")
		args = append(args, row...)
	}

	conflictSet := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		conflictSet[k] = true
	}
	var setClauses []string
	for _, c := range columns {
		if !conflictSet[c] {
			q := pgx.Identifier{c}.Sanitize()
			setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
		}
	}

	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(quoteAndJoin(conflictKeys))
	sb.WriteString(") DO UPDATE SET ")
	sb.WriteString(strings.Join(setClauses, ", "))

	return sb.String(), args
}

// sanitizeTable handles schema-qualified table names like "ratefeed.sources".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

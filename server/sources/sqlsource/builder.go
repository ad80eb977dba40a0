package sqlsource

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gear6io/dataagent/server/sources/filter"
	"github.com/gear6io/dataagent/server/types"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name may be interpolated into SQL
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

var comparisons = map[filter.Op]string{
	filter.OpGte: ">=",
	filter.OpLte: "<=",
	filter.OpGt:  ">",
	filter.OpLt:  "<",
	filter.OpEq:  "=",
}

// Statement is a query string with its bound arguments
type Statement struct {
	SQL  string
	Args []any
}

// builder renders SELECT statements for one table. Every identifier that
// reaches the SQL text is checked against the pattern and against the
// table's column set; every value is bound.
type builder struct {
	source  string
	dialect Dialect
	table   string
	columns map[string]bool
}

func (b *builder) checkColumn(name string) error {
	if !ValidIdentifier(name) {
		return types.NewIdentifierRejected(b.source, name, "Invalid column name")
	}
	if !b.columns[name] {
		return types.NewValidation(b.source, "Column '%s' not found in table '%s'", name, b.table).
			AddContext("column", name).
			AddContext("table", b.table)
	}
	return nil
}

// Select renders q. Filter clauses are ordered by column, then by operator,
// so the same query always yields the same text.
func (b *builder) Select(q types.Query) (Statement, error) {
	if !ValidIdentifier(b.table) {
		return Statement{}, types.NewIdentifierRejected(b.source, b.table, "Invalid table name")
	}

	projection := "*"
	if len(q.Columns) > 0 {
		for _, c := range q.Columns {
			if err := b.checkColumn(c); err != nil {
				return Statement{}, err
			}
		}
		projection = strings.Join(q.Columns, ", ")
	}

	conds, err := filter.Parse(q.Filters)
	if err != nil {
		return Statement{}, err
	}

	var args []any
	where := make([]string, 0, len(conds))
	for _, c := range conds {
		if err := b.checkColumn(c.Column); err != nil {
			return Statement{}, err
		}
		clause, arg := b.condition(c, len(args)+1)
		where = append(where, clause)
		args = append(args, arg)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.dialect.topLimit && q.HasLimit() {
		sb.WriteString("TOP (" + strconv.Itoa(q.Limit) + ") ")
	}
	sb.WriteString(projection)
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	if column, desc := q.Order(); column != "" {
		if err := b.checkColumn(column); err != nil {
			return Statement{}, err
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(column)
		if desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}

	if !b.dialect.topLimit && q.HasLimit() {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return Statement{SQL: sb.String(), Args: args}, nil
}

func (b *builder) condition(c filter.Condition, n int) (string, any) {
	ph := b.dialect.Placeholder(n)
	if c.Op == filter.OpContains {
		pattern := "%" + b.escapeLike(strings.ToLower(types.FormatValue(c.Value))) + "%"
		return "LOWER(" + c.Column + ") LIKE " + ph + ` ESCAPE '\'`, pattern
	}
	return c.Column + " " + comparisons[c.Op] + " " + ph, c.Value
}

func (b *builder) escapeLike(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '%' || r == '_':
			sb.WriteByte('\\')
		case r == '[' && b.dialect.likeBrackets:
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// countStatement counts every row of the table
func (b *builder) countStatement() (string, error) {
	if !ValidIdentifier(b.table) {
		return "", types.NewIdentifierRejected(b.source, b.table, "Invalid table name")
	}
	return "SELECT COUNT(*) FROM " + b.table, nil
}

package db

import (
	"strconv"
	"strings"
)

// Filter accumulates WHERE clauses with positional arguments so the count and
// data queries of a listing share one set of conditions.
type Filter struct {
	clauses []string
	args    []any
}

// Arg registers v and returns its placeholder.
func (f *Filter) Arg(v any) string {
	f.args = append(f.args, v)
	return "$" + strconv.Itoa(len(f.args))
}

// Where appends a clause. Use Arg to embed placeholders.
func (f *Filter) Where(clause string) {
	f.clauses = append(f.clauses, clause)
}

// Search adds a case-insensitive substring match of q against any of columns.
// LIKE wildcards in q match literally. Blank q adds nothing.
func (f *Filter) Search(q string, columns ...string) {
	q = strings.TrimSpace(q)
	if q == "" || len(columns) == 0 {
		return
	}
	p := f.Arg("%" + EscapeLike(q) + "%")
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + " ILIKE " + p + ` ESCAPE '\'`
	}
	f.Where("(" + strings.Join(parts, " OR ") + ")")
}

// EscapeLike escapes the LIKE metacharacters %, _ and the escape character itself.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQL renders " WHERE ..." or an empty string.
func (f *Filter) SQL() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// Args returns the accumulated arguments.
func (f *Filter) Args() []any {
	return f.args
}

// Page appends LIMIT/OFFSET placeholders and returns the clause with its
// full argument list, leaving the filter usable for the count query.
func (f *Filter) Page(limit, offset int) (string, []any) {
	args := append(append([]any{}, f.args...), limit, offset)
	n := len(f.args)
	return " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2), args
}

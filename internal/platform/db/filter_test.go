package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"plain":      "plain",
		"100%":       `100\%`,
		"snake_case": `snake\_case`,
		`C:\path`:    `C:\\path`,
		`%_\`:        `\%\_\\`,
	}
	for in, want := range cases {
		require.Equal(t, want, EscapeLike(in), in)
	}
}

func TestFilterSearchSharesOneEscapedArgument(t *testing.T) {
	var f Filter
	f.Where("status = " + f.Arg("published"))
	f.Search("  50%_off ", "title", "excerpt")

	require.Equal(t, ` WHERE status = $1 AND (title ILIKE $2 ESCAPE '\' OR excerpt ILIKE $2 ESCAPE '\')`, f.SQL())
	require.Equal(t, []any{"published", `%50\%\_off%`}, f.Args())

	limit, args := f.Page(10, 20)
	require.Equal(t, " LIMIT $3 OFFSET $4", limit)
	require.Len(t, args, 4)
	require.Len(t, f.Args(), 2)
}

func TestFilterSearchIgnoresBlankQuery(t *testing.T) {
	var f Filter
	f.Search("   ", "name")
	require.Empty(t, f.SQL())
	require.Empty(t, f.Args())
}

package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	sqlassets "github.com/zenGate-Global/retailops/database"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`
-- leading comment
CREATE TABLE a (id INT);

CREATE INDEX a_idx ON a (id);
-- trailing comment
`)
	require.Len(t, stmts, 2)
	require.True(t, strings.HasSuffix(stmts[0], "CREATE TABLE a (id INT)"))
	require.Equal(t, "CREATE INDEX a_idx ON a (id)", stmts[1])
}

func TestEmbeddedLifecycleDDLSplitsCleanly(t *testing.T) {
	var all []string
	for _, file := range sqlassets.Lifecycle() {
		all = append(all, splitStatements(file)...)
	}
	require.NotEmpty(t, all)
	for _, stmt := range all {
		upper := strings.ToUpper(stmt)
		require.True(t, strings.Contains(upper, "CREATE TABLE") || strings.Contains(upper, "CREATE INDEX") || strings.Contains(upper, "CREATE UNIQUE INDEX"), stmt)
	}
}

package migrations_test

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/straye-as/project-access-api/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createTable = regexp.MustCompile(`(?s)CREATE TABLE (\w+) \((.*?)\n\);`)

func tableDefinitions(t *testing.T) map[string]string {
	t.Helper()

	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	tables := map[string]string{}
	for _, name := range files {
		data, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		for _, m := range createTable.FindAllStringSubmatch(string(data), -1) {
			tables[m[1]] = m[2]
		}
	}
	return tables
}

func TestAppendOnlyTablesSurviveParentDeletes(t *testing.T) {
	tables := tableDefinitions(t)

	for _, table := range []string{"audit_records", "procurement_status_history", "portal_access_logs"} {
		t.Run(table, func(t *testing.T) {
			body, ok := tables[table]
			require.True(t, ok, "table %s not found in migrations", table)
			assert.NotContains(t, strings.ToUpper(body), "ON DELETE CASCADE")
			assert.NotContains(t, body, "REFERENCES projects")
			assert.NotContains(t, body, "REFERENCES users")
		})
	}
}

func TestAppendOnlyTablesHaveImmutabilityTriggers(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)

	var all strings.Builder
	for _, name := range files {
		data, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		all.Write(data)
	}

	for _, table := range []string{"audit_records", "procurement_status_history"} {
		assert.Contains(t, all.String(), "BEFORE UPDATE OR DELETE ON "+table)
	}
}

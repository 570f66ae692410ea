package specification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func TestColumnContainsEscapesWildcards(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"pricing", "%pricing%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\docs`, `%c:\\docs%`},
	}
	db := dryRunDB(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var rows []map[string]interface{}
			stmt := db.Table("documents").Scopes(ColumnContains{Column: "title", Query: tt.query}.Apply).Find(&rows).Statement

			assert.Contains(t, stmt.SQL.String(), `title ILIKE $1 ESCAPE '\'`)
			require.Len(t, stmt.Vars, 1)
			assert.Equal(t, tt.want, stmt.Vars[0])
		})
	}
}

func TestColumnContainsEmptyQueryMatchesAll(t *testing.T) {
	var rows []map[string]interface{}
	stmt := dryRunDB(t).Table("documents").Scopes(ColumnContains{Column: "title"}.Apply).Find(&rows).Statement
	assert.NotContains(t, stmt.SQL.String(), "ILIKE")
	assert.Empty(t, stmt.Vars)
}

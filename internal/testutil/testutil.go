package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/isdelr/rockhound-be/internal/database"
)

var dbSeq atomic.Int64

// OpenInMemoryDB opens a private in-memory SQLite database and applies migrations.
// The database is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("rockhound_test_%d", dbSeq.Add(1))
	d, err := database.New("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := database.Migrate(d); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return d
}

package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations_OrdersUpFilesOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_shop.up.sql":   {Data: []byte("CREATE TABLE b ();")},
		"migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE a ();")},
		"migrations/0001_init.down.sql": {Data: []byte("DROP TABLE a;")},
		"migrations/README.md":          {Data: []byte("notes")},
		"migrations/nested/x.up.sql":    {Data: []byte("SELECT 1;")},
	}

	names, err := ListMigrations(fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.up.sql", "0002_shop.up.sql"}, names)
}

func TestListMigrations_MissingDir(t *testing.T) {
	_, err := ListMigrations(fstest.MapFS{}, "migrations")
	assert.Error(t, err)
}

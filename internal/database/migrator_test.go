package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.Equal(t, []string{
		"001_create_users.sql",
		"002_create_plans.sql",
		"003_create_subscriptions.sql",
	}, names)

	for _, name := range names {
		body, err := fs.ReadFile(migrations, "migrations/"+name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "---- create above / drop below ----", name)
	}
}

func TestSubscriptionsMigration_LiveIndex(t *testing.T) {
	body, err := fs.ReadFile(migrations, "migrations/003_create_subscriptions.sql")
	require.NoError(t, err)

	sql := string(body)
	assert.True(t, strings.Contains(sql, "CREATE UNIQUE INDEX unique_subscriptions_live_user"))
	assert.Contains(t, sql, "WHERE status IN ('trialing', 'active')")
}

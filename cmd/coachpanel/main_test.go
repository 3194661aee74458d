package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := newRootCommand()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())

	migrate, _, err := root.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.Equal(t, "migrate", migrate.Name())

	assert.NotNil(t, root.RunE, "bare invocation serves")
}

func TestMigrateFailsFastOnInvalidConfig(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("COACH_AUTH.JWT_SECRET", "short")

	root := newRootCommand()
	root.SetArgs([]string{"migrate"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

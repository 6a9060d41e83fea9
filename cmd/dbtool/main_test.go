package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmdRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	require.Subset(t, names, []string{"init", "seed", "purge-cache"})

	require.NotNil(t, cmd.PersistentFlags().Lookup("timeout"))
}

func TestRequiresDatabaseURL(t *testing.T) {
	for _, args := range [][]string{
		{"--database-url", " "},
		{"init", "--database-url", ""},
		{"purge-cache", "--database-url", "", "--ttl", "1h"},
	} {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)

		err := cmd.Execute()
		require.Error(t, err, "args %v", args)
		require.Contains(t, err.Error(), "DATABASE_URL is required")
	}
}

func TestSeedRejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"seed", "extra"})

	require.Error(t, cmd.Execute())
}

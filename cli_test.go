package main

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"

	"ThreadBot/core/database"
	"ThreadBot/core/dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintCommands(t *testing.T) {
	d := dispatch.New(dispatch.Config{Prefix: "?"}, dispatch.Commands, dispatch.State{})

	var out bytes.Buffer
	require.NoError(t, printCommands(&out, d))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, dispatch.Commands.Len()+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, out.String(), "?balance")
	assert.Contains(t, out.String(), "bal,money")
	assert.Regexp(t, `\?prefix\s+admin\s+admin\s+5s`, out.String())
}

func TestPrintHistory(t *testing.T) {
	records := []database.DispatchRecord{
		{Invoked: "pay", UserId: "u1", ThreadId: "t1", Outcome: "handler_error", DurationMs: 12, CreatedAt: 0,
			Error: sql.NullString{String: "insufficient funds", Valid: true}},
	}

	var out bytes.Buffer
	require.NoError(t, printHistory(&out, records))
	assert.Contains(t, out.String(), "handler_error")
	assert.Contains(t, out.String(), "12ms")
	assert.Contains(t, out.String(), "insufficient funds")
}

func TestCLIAppCommands(t *testing.T) {
	app := newCLIApp()
	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"run", "commands", "migrate", "history"}, names)
}

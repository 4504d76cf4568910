package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestTreeCommand(t *testing.T) {
	out := execute(t, "tree", "--keys", "2000", "--seed", "7")
	assert.Contains(t, out, "keys=2000 remaining=1000 ")
	assert.Contains(t, out, "original=2000")
}

func TestBankCommand(t *testing.T) {
	out := execute(t, "bank", "--accounts", "4", "--workers", "4", "--transfers", "200", "--hot", "2")
	assert.Contains(t, out, "total=4000 ")
}

func TestBankCommandRejectsSingleAccount(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"bank", "--accounts", "1"})
	assert.ErrorContains(t, cmd.Execute(), "need at least 2 accounts")
}

func TestQueueCommand(t *testing.T) {
	out := execute(t, "queue", "--producers", "3", "--consumers", "2", "--items", "50")
	assert.Contains(t, out, "items=150 ")
}

func TestUnknownLogLevel(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"tree", "--keys", "1", "--log-level", "loud"})
	assert.Error(t, cmd.Execute())
}

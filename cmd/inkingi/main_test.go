package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thebtf/inkingi-ussd/internal/config"
)

func baseOptions(t *testing.T) simulateOptions {
	t.Helper()
	return simulateOptions{sessionID: "sim-1", phone: "+250788000000"}
}

func TestSimulate_PrintsEveryScreen(t *testing.T) {
	engine, err := simulationEngine(context.Background(), config.Default(), true)
	require.NoError(t, err)

	opts := baseOptions(t)
	opts.path = "1*1*2*3*Help I am trapped*1"

	var out bytes.Buffer
	require.NoError(t, simulate(context.Background(), &out, engine, opts))

	text := out.String()
	assert.Equal(t, 7, strings.Count(text, "> \""))
	assert.Contains(t, text, "> \"\"\nCON Welcome to INKINGI Rescue")
	assert.Contains(t, text, "> \"1*1*2*3\"\nCON Please tell us more about the emergency")
	assert.Contains(t, text, "END Thank you! Your Assault emergency has been reported.")
}

func TestSimulate_StopsAtEnd(t *testing.T) {
	engine, err := simulationEngine(context.Background(), config.Default(), true)
	require.NoError(t, err)

	opts := baseOptions(t)
	opts.path = "1*9*1*1"

	var out bytes.Buffer
	require.NoError(t, simulate(context.Background(), &out, engine, opts))
	assert.Contains(t, out.String(), "END Invalid option. Please try again.")
	assert.Contains(t, out.String(), "(session ended, 2 keys not sent)")
}

func TestSimulate_OfflineListings(t *testing.T) {
	engine, err := simulationEngine(context.Background(), config.Default(), true)
	require.NoError(t, err)

	opts := baseOptions(t)
	opts.path = "1*2*2*1"

	var out bytes.Buffer
	require.NoError(t, simulate(context.Background(), &out, engine, opts))
	assert.Contains(t, out.String(), "Upcoming Events\n1. First aid training")
	assert.Contains(t, out.String(), "Post Details\nTitle: First aid training")
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, Version+"\n", out.String())
}

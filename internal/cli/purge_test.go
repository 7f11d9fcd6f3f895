package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurge_WithoutAllFlag_Errors(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge requires --all flag for safety")
}

func TestPurge_ConfirmationMustMatch(t *testing.T) {
	cmd := &PurgeCommand{All: true, globals: &GlobalFlags{}, in: strings.NewReader("purge please\n")}

	var err error
	output := captureOutput(t, func() {
		err = cmd.confirm()
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation text did not match")
	assert.Contains(t, output, `Type "PURGE" to confirm`)
}

func TestPurge_NoInputAborts(t *testing.T) {
	cmd := &PurgeCommand{All: true, globals: &GlobalFlags{}, in: strings.NewReader("")}

	var err error
	_ = captureOutput(t, func() {
		err = cmd.confirm()
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input received")
}

func TestPurge_ConfirmationAccepted(t *testing.T) {
	cmd := &PurgeCommand{All: true, globals: &GlobalFlags{}, in: strings.NewReader("PURGE\n")}

	var err error
	_ = captureOutput(t, func() {
		err = cmd.confirm()
	})
	assert.NoError(t, err)
}

func TestPurge_WithAllAndForce_Succeeds(t *testing.T) {
	sess, clock := newTestSession(t)
	seedViews(t, sess, clock, 1, 3, time.Hour, 3)
	seedViews(t, sess, clock, 2, 3, 40*24*time.Hour, 2)

	cmd := &PurgeCommand{All: true, Force: true, globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.confirm())
		require.NoError(t, cmd.executeWithSession(context.Background(), sess))
	})

	assert.Contains(t, output, "Purged all data (5 views)")
	assert.NotContains(t, output, "WARNING")
	assert.Equal(t, 0, countViews(t, sess))
}

func TestPurge_JSONOutput(t *testing.T) {
	sess, clock := newTestSession(t)
	seedViews(t, sess, clock, 1, 3, time.Hour, 1)

	cmd := &PurgeCommand{All: true, Force: true, globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), sess))
	})

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &result), "output should be valid JSON: %s", output)
	assert.Equal(t, true, result["purged"])
	assert.Equal(t, float64(1), result["deleted"])
	assert.Equal(t, "all data deleted", result["message"])
}

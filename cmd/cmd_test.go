package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jjudge-oj/roster/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	got, err := parseStatus("in progress")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, got)

	got, err = parseStatus(" COMPLETED ")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got)

	_, err = parseStatus("done")
	assert.Error(t, err)
}

func TestParseRecordID(t *testing.T) {
	id, err := parseRecordID("1718000000000")
	require.NoError(t, err)
	assert.Equal(t, 1718000000000, id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		_, err := parseRecordID(raw)
		assert.Error(t, err, raw)
	}
}

func TestChangedFieldsOnlyReportsSetFlags(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	c.Flags().String("name", "", "")
	c.Flags().String("email", "", "")
	c.Flags().Bool("active", false, "")
	require.NoError(t, c.Flags().Parse([]string{"--name", "Ann", "--active"}))

	fields := changedFields(c, userFlags)
	assert.Equal(t, map[string]any{"name": "Ann", "isActive": "true"}, fields)
}

func TestPromptsShareBufferedInput(t *testing.T) {
	in := strings.NewReader("john@example.com\n12345\ny\n")
	var out bytes.Buffer

	assert.Equal(t, "john@example.com", prompt(in, &out, "Email"))
	assert.Equal(t, "12345", prompt(in, &out, "Password"))
	assert.True(t, confirm(in, &out, "Delete?"))
	assert.Equal(t, "Email: Password: Delete? [y/N] ", out.String())
}

func TestConfirmDefaultsToNo(t *testing.T) {
	var out bytes.Buffer
	assert.False(t, confirm(strings.NewReader("\n"), &out, "Delete?"))
	assert.False(t, confirm(strings.NewReader(""), &out, "Delete?"))
}

func TestRenderJSON(t *testing.T) {
	prev := outputFormat
	outputFormat = "json"
	t.Cleanup(func() { outputFormat = prev })

	var out bytes.Buffer
	require.NoError(t, render(&out, map[string]int{"n": 1}, nil))
	assert.JSONEq(t, `{"n":1}`, out.String())
}

package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restgate/internal/record"
)

func TestListCommands(t *testing.T) {
	cfg := writeGatewayConfig(t)

	tests := []struct {
		command string
		want    []string
	}{
		{"databases", []string{"tasks"}},
		{"layouts", []string{"tasks"}},
		{"scripts", []string{"close_open"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			out, err := execute(t, cfg, tt.command)
			require.NoError(t, err)

			var resp struct {
				Status string   `json:"status"`
				Data   []string `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, tt.want, resp.Data)
		})
	}
}

func TestFieldsCommand(t *testing.T) {
	cfg := writeGatewayConfig(t)

	out, err := execute(t, cfg, "fields", "tasks")
	require.NoError(t, err)

	var resp struct {
		Data []record.FieldMeta `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "Title", resp.Data[0].Name)
	assert.Equal(t, record.ResultText, resp.Data[0].ResultType)
	assert.True(t, resp.Data[1].AutoEntered)
	assert.Equal(t, record.ResultNumber, resp.Data[2].ResultType)
}

func TestFieldsCommand_MissingTable(t *testing.T) {
	cfg := writeGatewayConfig(t)

	out, err := execute(t, cfg, "fields", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_FileOutput tests JSON entries land in a file sink with the domain fields
func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rider.log")

	log, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Debug("Hidden below the level")
	log.Info("Rider document uploaded", UserID("user-1"), DocumentType("driversLicence"))
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Rider document uploaded", entry["message"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "driversLicence", entry["document_type"])
}

// TestNew_Outputs tests sink selection
func TestNew_Outputs(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "Default", output: ""},
		{name: "Stdout", output: "stdout"},
		{name: "Stderr", output: "stderr"},
		{name: "Unwritable path", output: filepath.Join(t.TempDir(), "missing", "rider.log"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(Config{Level: "not-a-level", Format: "console", Output: tt.output})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

package targets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/sshping/internal/config"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain",
			input: "8.8.8.8\n1.1.1.1\n",
			want:  []string{"8.8.8.8", "1.1.1.1"},
		},
		{
			name:  "surrounding whitespace",
			input: "  8.8.8.8 \t\n\tgw.example.com\r\n",
			want:  []string{"8.8.8.8", "gw.example.com"},
		},
		{
			name:  "blank and whitespace-only lines",
			input: "\n8.8.8.8\n   \n\t\n1.1.1.1",
			want:  []string{"8.8.8.8", "1.1.1.1"},
		},
		{
			name:  "comments",
			input: "# core routers\n10.0.0.1\n  # disabled: 10.0.0.2\n10.0.0.3\n",
			want:  []string{"10.0.0.1", "10.0.0.3"},
		},
		{
			name:  "duplicates are kept",
			input: "10.0.0.1\n10.0.0.1\n",
			want:  []string{"10.0.0.1", "10.0.0.1"},
		},
		{
			name:  "empty",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.1\n\n10.0.0.2\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.txt"))

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "file", cfgErr.Field)
}

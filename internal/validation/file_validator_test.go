package validation

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietValidator() *FileValidator {
	return NewFileValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFileValidator_ValidateParametersFile(t *testing.T) {
	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		errorContains string
	}{
		{
			name: "valid yaml",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "params.yaml")
				require.NoError(t, os.WriteFile(path, []byte("basic_price: [29, 49]\n"), 0644))
				return path
			},
		},
		{
			name: "valid yml upper case",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "PARAMS.YML")
				require.NoError(t, os.WriteFile(path, []byte("churn_rate: [0.02, 0.05]\n"), 0644))
				return path
			},
		},
		{
			name: "wrong extension",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "params.json")
				require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
				return path
			},
			errorContains: "extensions",
		},
		{
			name: "missing",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.yaml")
			},
			errorContains: "does not exist",
		},
		{
			name: "directory",
			setupFunc: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "dir.yaml")
				require.NoError(t, os.Mkdir(dir, 0755))
				return dir
			},
			errorContains: "is a directory",
		},
		{
			name: "empty",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "empty.yaml")
				require.NoError(t, os.WriteFile(path, nil, 0644))
				return path
			},
			errorContains: "is empty",
		},
		{
			name: "too large",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "huge.yaml")
				data := strings.Repeat("#", MaxParametersFileSize+1)
				require.NoError(t, os.WriteFile(path, []byte(data), 0644))
				return path
			},
			errorContains: "limit is",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := quietValidator().ValidateParametersFile(tt.setupFunc(t))
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := quietValidator()

	t.Run("creates nested directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "reports", "2026")
		require.NoError(t, v.ValidateOutputDirectory(dir))

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "write probe must be removed")
	})

	t.Run("path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		assert.Error(t, v.ValidateOutputDirectory(file))
	})
}

package validation

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promocli/internal/errors"
	"promocli/internal/shared/testutil"
)

func TestFileValidator_ValidateExport(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		wantType  errors.ErrorType
	}{
		{
			name: "csv export",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "orders.csv")
				require.NoError(t, os.WriteFile(path, []byte("ID\n"), 0644))
				return path
			},
		},
		{
			name: "upper case xlsx extension",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "orders.XLSX")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
				return path
			},
		},
		{
			name: "missing file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.csv")
			},
			wantType: errors.ErrTypeNotFound,
		},
		{
			name: "unsupported extension",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "orders.pdf")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
				return path
			},
			wantType: errors.ErrTypeValidation,
		},
		{
			name: "excel lock file",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "~$orders.xlsx")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
				return path
			},
			wantType: errors.ErrTypeValidation,
		},
		{
			name: "directory named like an export",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "orders.csv")
				require.NoError(t, os.Mkdir(path, 0755))
				return path
			},
			wantType: errors.ErrTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			err := NewFileValidator(logger).ValidateExport(tt.setupFunc(t))
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestFileValidator_ValidateOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "orders.xlsx")

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "xlsx in new directory", path: filepath.Join(dir, "reports", "out.xlsx")},
		{name: "csv", path: filepath.Join(dir, "out.csv")},
		{name: "wrong extension", path: filepath.Join(dir, "out.txt"), wantErr: true},
		{name: "overwrites input", path: input, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFileValidator(nil).ValidateOutput(tt.path, input)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.DirExists(t, filepath.Dir(tt.path))
		})
	}
}

func TestFileValidator_LogsMissingFile(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)

	err := NewFileValidator(logger).ValidateFile(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)

	testutil.AssertLogContains(t, handler, slog.LevelError, "input file missing")
}

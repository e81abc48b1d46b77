package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"promocli/internal/errors"
)

var (
	inputExtensions  = map[string]bool{".xlsx": true, ".xlsm": true, ".csv": true}
	outputExtensions = map[string]bool{".xlsx": true, ".csv": true}
)

// FileValidator checks the command line input and output paths before any
// workbook is opened.
type FileValidator struct {
	logger *slog.Logger
}

func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger.With(slog.String("component", "file_validator"))}
}

// ValidateFile reports a NOT_FOUND error for a missing path and a
// VALIDATION error for a directory.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		v.logger.Error("input file missing", slog.String("file", path))
		return errors.NewNotFoundError("file " + path)
	case err != nil:
		return errors.NewStorageError("cannot stat "+path, err)
	case info.IsDir():
		v.logger.Error("input is a directory", slog.String("file", path))
		return errors.NewAppValidationError(path + " is a directory")
	}

	f, err := os.Open(path)
	if err != nil {
		v.logger.Error("input file unreadable", slog.String("file", path), slog.String("error", err.Error()))
		return errors.NewStorageError("cannot read "+path, err)
	}
	f.Close()

	v.logger.Debug("input file ok", slog.String("file", path), slog.Int64("size", info.Size()))
	return nil
}

// ValidateExport checks that path is a readable xlsx or csv export.
// Excel lock files (~$name.xlsx) are refused.
func (v *FileValidator) ValidateExport(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !inputExtensions[ext] {
		v.logger.Error("unsupported input type", slog.String("file", path), slog.String("extension", ext))
		return errors.NewAppValidationError(fmt.Sprintf("%s is not an xlsx or csv export (extension %q)", path, ext))
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("skipping Excel lock file", slog.String("file", path))
		return errors.NewAppValidationError(path + " is an Excel lock file")
	}
	return v.ValidateFile(path)
}

// ValidateOutput checks that path names an xlsx or csv file whose directory
// exists or can be created, and that it does not overwrite input.
func (v *FileValidator) ValidateOutput(path, input string) error {
	if !outputExtensions[strings.ToLower(filepath.Ext(path))] {
		return errors.NewAppValidationError(fmt.Sprintf("output %s must end in .xlsx or .csv", path))
	}
	if input != "" && sameFile(path, input) {
		return errors.NewAppValidationError(fmt.Sprintf("output %s would overwrite the input", path))
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}

// ValidateOutputDirectory creates dir when missing and probes it for write
// access with a temp file.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("cannot create output directory", slog.String("directory", dir), slog.String("error", err.Error()))
		return errors.NewStorageError("cannot create output directory "+dir, err)
	}

	probe, err := os.CreateTemp(dir, ".promocli-probe-*")
	if err != nil {
		v.logger.Error("output directory not writable", slog.String("directory", dir), slog.String("error", err.Error()))
		return errors.NewStorageError("output directory "+dir+" is not writable", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// MaxParametersFileSize bounds parameter set files; real ones are a few KB
const MaxParametersFileSize = 1 << 20

// parameterExtensions are the accepted parameter file extensions
var parameterExtensions = []string{".yaml", ".yml"}

// FileValidator checks command line file inputs before any work starts
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateParametersFile checks that path is a readable YAML file of sane size
func (v *FileValidator) ValidateParametersFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	known := false
	for _, allowed := range parameterExtensions {
		if ext == allowed {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("parameters file %s must have one of the extensions %s", path, strings.Join(parameterExtensions, ", "))
	}

	info, err := v.statFile(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("parameters file %s is empty", path)
	}
	if info.Size() > MaxParametersFileSize {
		v.logger.Error("Parameters file too large",
			slog.String("file", path),
			slog.Int64("size", info.Size()))
		return fmt.Errorf("parameters file %s is %d bytes, limit is %d", path, info.Size(), MaxParametersFileSize)
	}

	v.logger.Debug("Parameters file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures dir exists or can be created, and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// statFile returns the file info of a readable regular file
func (v *FileValidator) statFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist", slog.String("file", path))
		return nil, fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	return info, nil
}

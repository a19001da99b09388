package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"
)

const pythonLanguage = "Python"

var (
	// ErrEmptyPath indicates a path argument was empty.
	ErrEmptyPath = errors.New("path is empty")
	// ErrPathContainsNUL indicates the path contains a NUL byte.
	ErrPathContainsNUL = errors.New("path contains NUL byte")
	// ErrNotDirectory indicates the source root is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")
	// ErrDirectoryPath indicates a file operation was attempted on a directory.
	ErrDirectoryPath = errors.New("path points to a directory")
	// ErrNotPython indicates an input file is not Python source.
	ErrNotPython = errors.New("not a Python source file")
	// ErrUnknownLogFormat indicates an unsupported --log-format value.
	ErrUnknownLogFormat = errors.New("unknown log format")
	// ErrUnknownFormat indicates an unsupported --format value.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrMultipleFiles indicates several files were given without --write or --diff.
	ErrMultipleFiles = errors.New("several files need --write or --diff")
	// ErrNoInput indicates no input files were given.
	ErrNoInput = errors.New("no input files")
)

func cleanUserPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("%w: %q", ErrPathContainsNUL, path)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}

	return absPath, nil
}

// resolveUserDir returns the absolute path of an existing directory.
func resolveUserDir(path string) (string, error) {
	absPath, err := cleanUserPath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(absPath)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, absPath)
	}

	return absPath, nil
}

// resolveUserFilePath returns the absolute path of an existing file.
func resolveUserFilePath(path string) (string, error) {
	absPath, err := cleanUserPath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", absPath, err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrDirectoryPath, absPath)
	}

	return absPath, nil
}

// safeReadPython reads a file that must be Python source, judged by its
// extension or, failing that, by enry content detection (shebang scripts).
func safeReadPython(path string) (content []byte, resolvedPath string, err error) {
	resolvedPath, err = resolveUserFilePath(path)
	if err != nil {
		return nil, "", err
	}

	//nolint:gosec // resolvedPath is normalized and existence/type checked in resolveUserFilePath.
	content, err = os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", resolvedPath, err)
	}

	if !isPython(resolvedPath, content) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotPython, resolvedPath)
	}

	return content, resolvedPath, nil
}

func isPython(path string, content []byte) bool {
	if enry.IsBinary(content) {
		return false
	}

	switch filepath.Ext(path) {
	case ".py", ".pyi", ".pyw":
		return true
	}

	return enry.GetLanguage(filepath.Base(path), content) == pythonLanguage
}

// writeOutput writes data to path, or to the fallback when path is empty.
func writeOutput(path string, data []byte, fallback func([]byte) error) error {
	if path == "" {
		return fallback(data)
	}

	err := os.WriteFile(path, data, outputPerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

const outputPerm = 0o644

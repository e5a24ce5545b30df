package util

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gpufand/gpufand/internal/ui"
	"github.com/natefinch/atomic"
)

func ReadIntFromFile(path string) (value int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, err
	}
	text := string(data)
	if len(text) <= 0 {
		return -1, fmt.Errorf("file is empty: %s", path)
	}
	text = strings.TrimSpace(text)
	value, err = strconv.Atoi(text)
	return value, err
}

// WriteIntToFile writes a single integer to the given path.
// Sysfs attributes must be written in place, a tempfile-and-rename
// scheme does not work there.
func WriteIntToFile(value int, path string) error {
	evaluatedPath, err := resolvePath(path)
	if len(evaluatedPath) > 0 && err == nil {
		path = evaluatedPath
	}
	valueAsString := fmt.Sprintf("%d", value)

	err = os.WriteFile(path, []byte(valueAsString), 0644)
	return err
}

func resolvePath(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// WritePidFile writes the current process id to the given path atomically.
func WritePidFile(path string) error {
	pid := fmt.Sprintf("%d", os.Getpid())
	return atomic.WriteFile(path, strings.NewReader(pid))
}

// ReadShortString reads a small sysfs attribute and trims surrounding whitespace.
func ReadShortString(path string) string {
	content, _ := os.ReadFile(path)
	return strings.TrimSpace(string(content))
}

// FindFilesMatching finds all files in a given directory, matching the given regex
func FindFilesMatching(path string, expr *regexp.Regexp) []string {
	var result []string
	err := filepath.Walk(path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && expr.MatchString(info.Name()) {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return err
			}
			result = append(result, resolved)
		}

		return nil
	})
	if err != nil {
		ui.Warning("Error scanning %s: %v", path, err)
	}

	return result
}

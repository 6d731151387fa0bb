package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
)

// SourceExtensions are the file extensions treated as assembly source.
var SourceExtensions = []string{".asm", ".s", ".c8s"}

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", errors.Trace(err)
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// IsSource reports whether path names an assembly source file.
func IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ReadImage reads a raw program image from path and checks that it fits
// the program area.
func ReadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s", path)
	}
	if len(data) > cpu.ProgramCapacity {
		return nil, errors.Annotatef(cpu.ErrProgramTooLarge, "%s is %d bytes", path, len(data))
	}
	return data, nil
}

// ReadProgram returns a loadable image for path: assembly source is
// assembled, anything else is read as a raw image.
func ReadProgram(path string) ([]byte, error) {
	if !IsSource(path) {
		return ReadImage(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s", path)
	}
	image, _, err := asm.Assemble(string(src))
	if err != nil {
		return nil, errors.Annotatef(err, "assembling %s", path)
	}
	return image, nil
}

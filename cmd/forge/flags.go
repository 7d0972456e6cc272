package main

import (
	"os"
	"path/filepath"

	"github.com/cwbaker/forge/pkg/forgeerrors"
)

const rootFileName = "build.lua"

// rootFlags are the persistent flags every subcommand shares.
type rootFlags struct {
	directory string
	file      string
	jobs      int
	verbose   bool
}

// resolveRootFile walks upward from startDir looking for rootFileName,
// the same "find the project root" convention as build tools that don't
// require an explicit config path (spec §6 "root discovery").
func resolveRootFile(startDir, explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, rootFileName)
		if fileExists(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &forgeerrors.RootFileNotFound{StartDir: startDir, FileName: rootFileName}
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NewSessionFolder creates the next participant folder under dir, named
// prefix_NNNN with NNNN one above the highest numeric suffix among the
// existing sub-folders. The first folder is prefix_0001.
func NewSessionFolder(dir, prefix string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list output dir: %w", err)
	}
	highest := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		suffix := name[strings.LastIndex(name, "_")+1:]
		if suffix == "" || strings.Trim(suffix, "0123456789") != "" {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%04d", prefix, highest+1))
	if err := os.Mkdir(path, 0o755); err != nil {
		return "", fmt.Errorf("create session folder: %w", err)
	}
	return path, nil
}

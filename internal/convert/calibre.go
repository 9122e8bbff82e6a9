// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const binCalibre = "ebook-convert"

// Command hooks, swapped in tests.
var (
	lookPath   = exec.LookPath
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}
)

// CalibreConverter runs a locally installed ebook-convert.
type CalibreConverter struct {
	bin string
}

// NewCalibreConverter locates bin (ebook-convert when empty) on PATH.
func NewCalibreConverter(bin string) (*CalibreConverter, error) {
	if bin == "" {
		bin = binCalibre
	}
	path, err := lookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", bin, err)
	}
	return &CalibreConverter{bin: path}, nil
}

func (c *CalibreConverter) Convert(ctx context.Context, inPath, outPath string) error {
	out, err := runCommand(ctx, c.bin, inPath, outPath)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
			msg = msg[i+1:]
		}
		return fmt.Errorf("converting %s: %w: %s", filepath.Base(inPath), err, msg)
	}
	return checkOutput(outPath)
}

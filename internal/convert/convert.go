// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns alternate e-book formats (EPUB, MOBI) into PDF with
// pluggable backends: an ebook-convert container image or a local Calibre
// install.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pdiddy/bookfinder/internal/container"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// ErrNoBackend is returned by the converter used when conversion is
// disabled or no backend could be set up.
var ErrNoBackend = errors.New("no conversion backend")

// Converter writes a PDF rendition of the e-book at inPath to outPath. The
// format of the input is taken from its extension.
type Converter interface {
	Convert(ctx context.Context, inPath, outPath string) error
}

// New sets up the backend selected in cfg. Setup failures are not fatal:
// the caller gets an Unavailable converter and the reason, and only
// alternate-format acquisitions fail.
func New(ctx context.Context, cfg types.AcquisitionConfig) (Converter, error) {
	switch cfg.Converter {
	case types.BackendContainer:
		rt, err := container.Detect(ctx, cfg.ContainerRuntime)
		if err != nil {
			return Unavailable{Reason: err.Error()}, err
		}
		c, err := NewContainerConverter(ctx, rt, cfg.ConverterImage)
		if err != nil {
			return Unavailable{Reason: err.Error()}, err
		}
		return c, nil
	case types.BackendCalibre:
		c, err := NewCalibreConverter("")
		if err != nil {
			return Unavailable{Reason: err.Error()}, err
		}
		return c, nil
	case types.BackendNone, "":
		return Unavailable{Reason: "conversion disabled"}, nil
	}
	err := fmt.Errorf("unknown converter backend %q", cfg.Converter)
	return Unavailable{Reason: err.Error()}, err
}

// Unavailable fails every conversion.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Convert(context.Context, string, string) error {
	return fmt.Errorf("%w: %s", ErrNoBackend, u.Reason)
}

// checkOutput confirms the backend left a non-empty file at path.
func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("converter produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("converter produced empty output %s", path)
	}
	return nil
}

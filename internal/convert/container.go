// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/bookfinder/internal/container"
)

// DefaultImage ships Calibre's ebook-convert.
const DefaultImage = "ebook-convert:latest"

const (
	// workDir is where the job directory is mounted inside the container.
	workDir = "/work"

	// jobMemory caps ebook-convert, which can balloon on image-heavy books.
	jobMemory = "2g"
)

// ContainerConverter runs ebook-convert inside a container image. It depends
// on a container.Runtime (docker or podman) injected at construction time.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
}

// NewContainerConverter creates a converter that uses the given container
// runtime to run image. It verifies that the image exists locally before
// returning.
func NewContainerConverter(ctx context.Context, rt container.Runtime, image string) (*ContainerConverter, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("converter image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image}, nil
}

// Convert mounts the directory holding inPath and writes outPath inside it.
// Both paths must share a directory; the container has no network.
func (c *ContainerConverter) Convert(ctx context.Context, inPath, outPath string) error {
	dir := filepath.Dir(inPath)
	if filepath.Dir(outPath) != dir {
		return fmt.Errorf("input %s and output %s must share a directory", inPath, outPath)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	job := container.Job{
		Image: c.image,
		Args: []string{
			"ebook-convert",
			workDir + "/" + filepath.Base(inPath),
			workDir + "/" + filepath.Base(outPath),
		},
		Mounts: []container.Mount{{Host: abs, Container: workDir}},
		User:   fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Memory: jobMemory,
	}
	if err := c.runtime.Run(ctx, job); err != nil {
		return fmt.Errorf("converting %s: %w", filepath.Base(inPath), err)
	}
	return checkOutput(outPath)
}

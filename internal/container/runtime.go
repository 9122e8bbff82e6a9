// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs one-shot jobs in a docker or podman container. The
// e-book converter uses it to run ebook-convert without a local Calibre
// install.
package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Mount binds a host directory into the container.
type Mount struct {
	Host      string
	Container string
	ReadOnly  bool
}

func (m Mount) flag() string {
	v := m.Host + ":" + m.Container
	if m.ReadOnly {
		v += ":ro"
	}
	return v
}

// Job describes one container invocation. The container never has network
// access and is removed when it exits.
type Job struct {
	Image  string
	Args   []string
	Mounts []Mount

	// User is passed as --user (uid:gid) so files written to mounts belong
	// to the caller. Empty keeps the image default.
	User string

	// Memory is passed as --memory, e.g. "1g". Empty means no limit.
	Memory string
}

func (j Job) args() []string {
	args := []string{"run", "--rm", "--network", "none"}
	if j.User != "" {
		args = append(args, "--user", j.User)
	}
	if j.Memory != "" {
		args = append(args, "--memory", j.Memory)
	}
	for _, m := range j.Mounts {
		args = append(args, "-v", m.flag())
	}
	args = append(args, j.Image)
	return append(args, j.Args...)
}

// Runtime is a usable container CLI.
type Runtime interface {
	Name() string

	// ImageExists returns nil when image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes job and waits for it. Cancelling ctx kills the client
	// process; the container is removed on exit.
	Run(ctx context.Context, job Job) error
}

// commander runs a CLI and returns its combined output.
type commander interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type osCommander struct{}

func (osCommander) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osCommander) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// cli is one supported runtime binary.
type cli struct {
	bin        string
	imageCheck []string
	cmd        commander
}

// known lists the supported runtimes in detection order.
var known = []cli{
	{bin: "docker", imageCheck: []string{"image", "inspect"}},
	{bin: "podman", imageCheck: []string{"image", "exists"}},
}

func (c *cli) Name() string { return c.bin }

func (c *cli) usable(ctx context.Context) bool {
	if _, err := c.cmd.LookPath(c.bin); err != nil {
		return false
	}
	_, err := c.cmd.Output(ctx, c.bin, "info")
	return err == nil
}

func (c *cli) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string{}, c.imageCheck...), image)
	if _, err := c.cmd.Output(ctx, c.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, c.bin, err)
	}
	return nil
}

func (c *cli) Run(ctx context.Context, job Job) error {
	out, err := c.cmd.Output(ctx, c.bin, job.args()...)
	if err != nil {
		if msg := lastLine(string(out)); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return fmt.Errorf("running %s container %s: %w", c.bin, job.Image, err)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Detect returns the preferred runtime ("docker" or "podman") when it works,
// or the first working one when preferred is empty.
func Detect(ctx context.Context, preferred string) (Runtime, error) {
	return detect(ctx, osCommander{}, preferred)
}

func detect(ctx context.Context, cmd commander, preferred string) (Runtime, error) {
	names := make([]string, 0, len(known))
	for _, k := range known {
		names = append(names, k.bin)
		if preferred != "" && k.bin != preferred {
			continue
		}
		c := &cli{bin: k.bin, imageCheck: k.imageCheck, cmd: cmd}
		if c.usable(ctx) {
			return c, nil
		}
		if preferred != "" {
			return nil, fmt.Errorf("container runtime %s not found or not running", preferred)
		}
	}
	if preferred != "" {
		return nil, fmt.Errorf("unsupported container runtime %q (want one of %s)", preferred, strings.Join(names, ", "))
	}
	return nil, fmt.Errorf("no container runtime available: tried %s", strings.Join(names, ", "))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/bookfinder/internal/container"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// fakeRuntime implements container.Runtime. On Run it writes output to the
// host side of the first mount, mimicking ebook-convert.
type fakeRuntime struct {
	images map[string]bool
	output string
	err    error
	gotJob container.Job
}

func (f *fakeRuntime) Name() string { return "docker" }

func (f *fakeRuntime) ImageExists(_ context.Context, image string) error {
	if f.images[image] {
		return nil
	}
	return errors.New("no such image")
}

func (f *fakeRuntime) Run(_ context.Context, job container.Job) error {
	f.gotJob = job
	if f.err != nil {
		return f.err
	}
	if f.output != "" {
		out := filepath.Join(job.Mounts[0].Host, filepath.Base(job.Args[len(job.Args)-1]))
		return os.WriteFile(out, []byte(f.output), 0o644)
	}
	return nil
}

func setupBook(t *testing.T, name string) (inPath, outPath string) {
	t.Helper()
	dir := t.TempDir()
	inPath = filepath.Join(dir, name)
	if err := os.WriteFile(inPath, []byte("PK\x03\x04 fake epub"), 0o644); err != nil {
		t.Fatal(err)
	}
	return inPath, filepath.Join(dir, "out.pdf")
}

func TestNewContainerConverter(t *testing.T) {
	rt := &fakeRuntime{images: map[string]bool{DefaultImage: true}}
	if _, err := NewContainerConverter(context.Background(), rt, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := NewContainerConverter(context.Background(), rt, "missing:1")
	if err == nil || !strings.Contains(err.Error(), "docker") {
		t.Errorf("expected image error mentioning runtime, got %v", err)
	}
}

func TestContainerConverter(t *testing.T) {
	tests := []struct {
		name    string
		rt      *fakeRuntime
		wantErr string
	}{
		{
			name: "successful conversion",
			rt:   &fakeRuntime{output: "%PDF-1.4 converted"},
		},
		{
			name:    "container failure",
			rt:      &fakeRuntime{err: errors.New("exit status 1")},
			wantErr: "exit status 1",
		},
		{
			name:    "no output written",
			rt:      &fakeRuntime{},
			wantErr: "no output",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := setupBook(t, "book.epub")
			c := &ContainerConverter{runtime: tt.rt, image: DefaultImage}

			err := c.Convert(context.Background(), in, out)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			data, _ := os.ReadFile(out)
			if !strings.HasPrefix(string(data), "%PDF") {
				t.Errorf("output = %q", data)
			}
			want := []string{"ebook-convert", "/work/book.epub", "/work/out.pdf"}
			if strings.Join(tt.rt.gotJob.Args, " ") != strings.Join(want, " ") {
				t.Errorf("args = %v, want %v", tt.rt.gotJob.Args, want)
			}
			if tt.rt.gotJob.Mounts[0].Host != filepath.Dir(in) {
				t.Errorf("mount = %+v", tt.rt.gotJob.Mounts[0])
			}
			if tt.rt.gotJob.User == "" || tt.rt.gotJob.Memory != jobMemory {
				t.Errorf("job user = %q memory = %q", tt.rt.gotJob.User, tt.rt.gotJob.Memory)
			}
		})
	}
}

func TestContainerConverterRejectsSplitDirs(t *testing.T) {
	in, _ := setupBook(t, "book.mobi")
	c := &ContainerConverter{runtime: &fakeRuntime{}, image: DefaultImage}
	err := c.Convert(context.Background(), in, filepath.Join(t.TempDir(), "out.pdf"))
	if err == nil || !strings.Contains(err.Error(), "share a directory") {
		t.Errorf("expected shared directory error, got %v", err)
	}
}

func TestCalibreConverter(t *testing.T) {
	oldLook, oldRun := lookPath, runCommand
	defer func() { lookPath, runCommand = oldLook, oldRun }()

	lookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	var gotName string
	var gotArgs []string
	runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return nil, os.WriteFile(args[1], []byte("%PDF-1.7"), 0o644)
	}

	c, err := NewCalibreConverter("")
	if err != nil {
		t.Fatal(err)
	}
	in, out := setupBook(t, "book.epub")
	if err := c.Convert(context.Background(), in, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != "/usr/bin/ebook-convert" || len(gotArgs) != 2 || gotArgs[0] != in {
		t.Errorf("ran %s %v", gotName, gotArgs)
	}

	runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Converting...\nValueError: not a MOBI file"), errors.New("exit status 1")
	}
	err = c.Convert(context.Background(), in, out)
	if err == nil || !strings.Contains(err.Error(), "not a MOBI file") {
		t.Errorf("expected last stderr line in error, got %v", err)
	}
}

func TestNewCalibreConverterMissing(t *testing.T) {
	oldLook := lookPath
	defer func() { lookPath = oldLook }()
	lookPath = func(string) (string, error) { return "", errors.New("not found") }

	if _, err := NewCalibreConverter(""); err == nil {
		t.Fatal("expected error when ebook-convert is missing")
	}
}

func TestNewDisabled(t *testing.T) {
	cfg := types.DefaultPipelineConfig().Acquisition
	cfg.Converter = types.BackendNone

	c, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = c.Convert(context.Background(), "a.epub", "a.pdf")
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}

	cfg.Converter = "pandoc"
	c, err = New(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, ok := c.(Unavailable); !ok {
		t.Errorf("expected Unavailable converter, got %T", c)
	}
}

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/k11v/etex/internal/builder"
	"github.com/k11v/etex/internal/client"
	"github.com/k11v/etex/internal/relay"
	"github.com/k11v/etex/internal/server"
)

func newTestClient(tb testing.TB, b builder.Builder) *client.Client {
	tb.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := relay.New(&relay.Config{TempDir: tb.TempDir()}, b, log)
	srv := httptest.NewServer(server.New(&server.Config{}, log, r, false).Handler)
	tb.Cleanup(srv.Close)

	return &client.Client{BaseURL: srv.URL}
}

func writeTestFiles(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()

	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
			tb.Fatalf("didn't want %q", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o666); err != nil {
			tb.Fatalf("didn't want %q", err)
		}
	}
}

func TestBuild(t *testing.T) {
	t.Run("extracts result into output directory", func(t *testing.T) {
		var gotFiles []string
		b := builderFunc(func(ctx context.Context, params *builder.Params) error {
			err := filepath.WalkDir(params.Dir, func(path string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				rel, err := filepath.Rel(params.Dir, path)
				if err != nil {
					return err
				}
				gotFiles = append(gotFiles, filepath.ToSlash(rel))
				return nil
			})
			if err != nil {
				return err
			}
			return (&builder.Placeholder{}).Build(ctx, params)
		})
		c := newTestClient(t, b)

		dir := t.TempDir()
		writeTestFiles(t, dir, map[string]string{
			"sample.yaml":          "files_path: md_sources\nfigures_path: /images\noutput_path: /text\n",
			"md_sources/1_text.md": "text",
			"images/foo.png":       "png",
			"unrelated.txt":        "unrelated",
		})

		if err := build(context.Background(), c, filepath.Join(dir, "sample.yaml")); err != nil {
			t.Fatalf("didn't want %q", err)
		}

		wantFiles := []string{"images/foo.png", "md_sources/1_text.md", "sample.yaml"}
		if len(gotFiles) != len(wantFiles) {
			t.Fatalf("got %q, want %q", gotFiles, wantFiles)
		}
		for i := range wantFiles {
			if gotFiles[i] != wantFiles[i] {
				t.Fatalf("got %q, want %q", gotFiles, wantFiles)
			}
		}

		for name, want := range map[string]string{"foo.txt": "Hello, world!", "bar.txt": "Goodbye, world!"} {
			got, err := os.ReadFile(filepath.Join(dir, "text", name))
			if err != nil {
				t.Fatalf("didn't want %q", err)
			}
			if string(got) != want {
				t.Fatalf("got %q, want %q", got, want)
			}
		}
	})

	t.Run("returns server error", func(t *testing.T) {
		b := builderFunc(func(ctx context.Context, params *builder.Params) error {
			return &builder.ExitError{ExitCode: 1}
		})
		c := newTestClient(t, b)

		dir := t.TempDir()
		writeTestFiles(t, dir, map[string]string{
			"sample.yaml": "files_path: src\noutput_path: out\n",
			"src/a.md":    "a",
		})

		err := build(context.Background(), c, filepath.Join(dir, "sample.yaml"))

		var e *client.Error
		if !errors.As(err, &e) {
			t.Fatalf("got %v, want *client.Error", err)
		}
		if got, want := e.Status, http.StatusInternalServerError; got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
		if got, want := e.Kind, string(relay.KindBuildError); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if _, err = os.Stat(filepath.Join(dir, "out")); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("got %v, want output directory not to exist", err)
		}
	})
}

type builderFunc func(ctx context.Context, params *builder.Params) error

func (f builderFunc) Build(ctx context.Context, params *builder.Params) error {
	return f(ctx, params)
}

package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientBuild(t *testing.T) {
	t.Run("sends archive", func(t *testing.T) {
		var (
			gotMakefileName string
			gotOutputPath   string
			gotContentType  string
			gotBody         []byte
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMakefileName = r.URL.Query().Get("makefile_name")
			gotOutputPath = r.URL.Query().Get("output_path")
			gotContentType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)

			w.Header().Set("Content-Type", "application/zip")
			_, _ = w.Write([]byte("result"))
		}))
		t.Cleanup(srv.Close)

		c := &Client{BaseURL: srv.URL + "/"}
		result, err := c.Build(context.Background(), "my makefile.yaml", "out&dir", []byte("archive"))
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}

		if got, want := string(result), "result"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := gotMakefileName, "my makefile.yaml"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := gotOutputPath, "out&dir"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := gotContentType, "application/zip"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if !bytes.Equal(gotBody, []byte("archive")) {
			t.Fatalf("got %q, want %q", gotBody, "archive")
		}
	})

	t.Run("decodes error response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"status":422,"kind":"ArchiveError","message":"invalid archive"}`)
		}))
		t.Cleanup(srv.Close)

		c := &Client{BaseURL: srv.URL}
		_, err := c.Build(context.Background(), "main.yaml", "out", []byte("archive"))

		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("got %v, want *Error", err)
		}
		want := Error{Status: 422, Kind: "ArchiveError", Message: "invalid archive"}
		if *e != want {
			t.Fatalf("got %+v, want %+v", *e, want)
		}
	})

	t.Run("keeps non-JSON error response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		c := &Client{BaseURL: srv.URL}
		_, err := c.Build(context.Background(), "main.yaml", "out", []byte("archive"))

		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("got %v, want *Error", err)
		}
		want := Error{Status: http.StatusBadGateway, Kind: "Bad Gateway", Message: "bad gateway"}
		if *e != want {
			t.Fatalf("got %+v, want %+v", *e, want)
		}
	})
}

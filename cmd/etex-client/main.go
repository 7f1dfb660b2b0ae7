package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/k11v/etex/internal/archive"
	"github.com/k11v/etex/internal/client"
	"github.com/k11v/etex/internal/makefile"
)

func main() {
	run := func() int {
		host := flag.String("host", "localhost", "host of the etex server")
		port := flag.Int("port", 8000, "port of the etex server")
		flag.Usage = func() {
			_, _ = fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] makefile\n", filepath.Base(os.Args[0]))
			flag.PrintDefaults()
		}
		flag.Parse()
		if flag.NArg() != 1 {
			flag.Usage()
			return 2
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		c := &client.Client{BaseURL: "http://" + net.JoinHostPort(*host, strconv.Itoa(*port))}
		if err := build(ctx, c, flag.Arg(0)); err != nil {
			if e := (*client.Error)(nil); errors.As(err, &e) {
				_, _ = fmt.Fprintf(os.Stderr, "error: %s: %s\n", e.Kind, e.Message)
				return 1
			}
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		return 0
	}
	os.Exit(run())
}

// build sends the files of the makefile at makefilePath to the server
// and extracts the result into the makefile output directory.
func build(ctx context.Context, c *client.Client, makefilePath string) error {
	m, err := makefile.Read(makefilePath)
	if err != nil {
		return err
	}

	files, err := makefile.Files(makefilePath, m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(makefilePath)
	data, err := archive.PackFiles(dir, files)
	if err != nil {
		return err
	}

	result, err := c.Build(ctx, filepath.Base(makefilePath), m.Output(), data)
	if err != nil {
		return err
	}

	outputDir := filepath.Join(dir, filepath.FromSlash(m.Output()))
	if err = os.MkdirAll(outputDir, 0o777); err != nil {
		return err
	}
	return archive.Extract(&archive.ExtractParams{Data: result, Dir: outputDir})
}

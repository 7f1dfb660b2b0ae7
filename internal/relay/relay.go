package relay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/k11v/etex/internal/archive"
	"github.com/k11v/etex/internal/builder"
	"github.com/k11v/etex/internal/workspace"
)

// Relay stages an uploaded workspace archive, builds it and packs the output.
type Relay struct {
	config  *Config         // required
	builder builder.Builder // required
	log     *slog.Logger    // required
}

func New(config *Config, b builder.Builder, log *slog.Logger) *Relay {
	return &Relay{
		config:  config,
		builder: b,
		log:     log.With("component", "relay"),
	}
}

// Request is a single build request.
type Request struct {
	ID           uuid.UUID // zero value means a new random ID
	MakefileName string    // relative to the archive root
	OutputPath   string    // relative to the archive root
	Archive      []byte    // zip
}

// Do builds req and returns a zip with the files of the output directory.
// Entries are named by base name.
//
// The returned error is always an *Error.
// The workspace is removed before Do returns, whatever the outcome.
func (r *Relay) Do(ctx context.Context, req *Request) (result []byte, err error) {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	log := r.log.With("request_id", id)

	if e := checkRequest(req); e != nil {
		return nil, e
	}

	// Create workspace.
	ws, err := workspace.New(r.config.TempDir, fmt.Sprintf("etex-%s-", id))
	if err != nil {
		return nil, NewFilesystemError("didn't create workspace", err)
	}
	log = log.With("workspace", ws.Dir)
	log.Debug("created workspace")
	defer func() {
		if removeErr := ws.Remove(); removeErr != nil {
			log.Error("didn't remove workspace", "error", removeErr)
			if err == nil {
				result, err = nil, NewFilesystemError("didn't remove workspace", removeErr)
			}
			return
		}
		log.Debug("removed workspace")
	}()

	// Extract archive.
	err = archive.Extract(&archive.ExtractParams{
		Data:    req.Archive,
		Dir:     ws.Dir,
		MaxSize: r.config.maxExtractedSize(),
	})
	if err != nil {
		if archive.IsInvalid(err) {
			return nil, NewArchiveError("invalid archive", err)
		}
		return nil, NewFilesystemError("didn't extract archive", err)
	}

	// Resolve makefile and output directory.
	makefile, err := ws.Path(req.MakefileName)
	if err != nil {
		return nil, NewBadRequestError(0, "invalid makefile_name", err)
	}
	outputDir, err := ws.Path(req.OutputPath)
	if err != nil {
		return nil, NewBadRequestError(0, "invalid output_path", err)
	}
	if e := checkMakefile(makefile, req.MakefileName); e != nil {
		return nil, e
	}

	// Build.
	if e := r.build(ctx, log, &builder.Params{
		Dir:          ws.Dir,
		Makefile:     makefile,
		MakefileName: req.MakefileName,
		OutputDir:    outputDir,
		OutputName:   req.OutputPath,
	}); e != nil {
		return nil, e
	}

	// Pack output directory.
	info, err := os.Stat(outputDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewBuildError(fmt.Sprintf("build didn't create output directory %q", req.OutputPath), nil)
	}
	if err != nil {
		return nil, NewFilesystemError("didn't stat output directory", err)
	}
	if !info.IsDir() {
		return nil, NewBuildError(fmt.Sprintf("build output %q is not a directory", req.OutputPath), nil)
	}

	result, err = archive.PackFlat(outputDir)
	if err != nil {
		if errors.Is(err, archive.ErrDuplicateName) {
			return nil, NewBuildError("build output has files with the same name", err)
		}
		return nil, NewFilesystemError("didn't pack output directory", err)
	}

	log.Info("built", "size", len(result))
	return result, nil
}

func (r *Relay) build(ctx context.Context, log *slog.Logger, params *builder.Params) *Error {
	timeout := r.config.buildTimeout()
	buildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buildLog := newTailBuffer(buildLogTailSize)
	params.Log = buildLog

	log.Debug("building", "makefile", params.MakefileName, "output", params.OutputName)
	err := r.builder.Build(buildCtx, params)
	if err == nil {
		log.Debug("build succeeded", "log", buildLog.String())
		return nil
	}
	log.Debug("build failed", "error", err, "log", buildLog.String())

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(fmt.Sprintf("build didn't finish in %s", timeout), err)
	}
	if errors.Is(err, context.Canceled) {
		return NewBuildError("build canceled", err)
	}
	message := "build failed"
	if exitErr := (*builder.ExitError)(nil); errors.As(err, &exitErr) {
		message = fmt.Sprintf("build failed with exit code %d", exitErr.ExitCode)
	}
	if tail := buildLog.String(); tail != "" {
		message += ":\n" + tail
	}
	return NewBuildError(message, err)
}

func checkRequest(req *Request) *Error {
	if req.MakefileName == "" {
		return NewBadRequestError(0, "missing makefile_name", nil)
	}
	if err := workspace.CheckName(req.MakefileName); err != nil {
		return NewBadRequestError(0, "invalid makefile_name", err)
	}
	if req.OutputPath == "" {
		return NewBadRequestError(0, "missing output_path", nil)
	}
	if err := workspace.CheckName(req.OutputPath); err != nil {
		return NewBadRequestError(0, "invalid output_path", err)
	}
	if len(req.Archive) == 0 {
		return NewBadRequestError(0, "empty archive", nil)
	}
	return nil
}

func checkMakefile(makefile string, name string) *Error {
	info, err := os.Stat(makefile)
	if errors.Is(err, fs.ErrNotExist) {
		return NewArchiveError(fmt.Sprintf("makefile %q not found in archive", name), nil)
	}
	if err != nil {
		return NewFilesystemError("didn't stat makefile", err)
	}
	if !info.Mode().IsRegular() {
		return NewArchiveError(fmt.Sprintf("makefile %q is not a regular file", name), nil)
	}
	return nil
}

// buildLogTailSize is how much of the build tool output is kept for error messages.
const buildLogTailSize = 4 * 1024 // 4KB

// tailBuffer keeps the last size bytes written to it.
// It is safe for concurrent use.
type tailBuffer struct {
	mu   sync.Mutex
	size int
	buf  []byte
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if len(p) > b.size {
		p = p[len(p)-b.size:]
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.size; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.buf)
}

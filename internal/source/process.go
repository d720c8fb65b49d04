package source

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"github.com/argus-io/ingest-agent/internal/bufpool"
)

// frameStream is the abstraction the reader goroutine consumes: a byte
// stream to scan for JPEG frame boundaries, plus a way to tear it down.
// Production code backs this with an ffmpeg subprocess; tests back it with
// an in-memory io.Reader feeding synthetic frames.
type frameStream struct {
	r      *bufio.Reader
	closer func() error
}

func (fs *frameStream) next() ([]byte, error) {
	var buf []byte
	chunk := bufpool.Get(8192)
	defer bufpool.Put(chunk)
	for {
		if f := extractJPEGFrame(&buf); f != nil {
			return f, nil
		}
		n, err := fs.r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if f := extractJPEGFrame(&buf); f != nil {
				return f, nil
			}
			return nil, err
		}
	}
}

func (fs *frameStream) close() error {
	if fs.closer == nil {
		return nil
	}
	return fs.closer()
}

// newReaderStream wraps an arbitrary io.Reader (used by tests and by
// anything that isn't spawning ffmpeg).
func newReaderStream(r io.Reader, closer func() error) *frameStream {
	return &frameStream{r: bufio.NewReaderSize(r, 64*1024), closer: closer}
}

// spawnFFmpeg starts ffmpeg with the given arguments and returns a
// frameStream reading its stdout. Stderr is drained in the background so
// ffmpeg never blocks on a full stderr pipe.
func spawnFFmpeg(ctx context.Context, args []string) (*frameStream, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := stderr.Read(buf); err != nil {
				return
			}
		}
	}()

	return newReaderStream(stdout, func() error {
		_ = cmd.Process.Kill()
		return cmd.Wait()
	}), nil
}

package filter

import (
	"compress/gzip"
	"io"
	"sync"

	"github.com/c360/camstream/errors"
)

// GzipDecoder decompresses a gzip stream. Decompression runs on a dedicated
// goroutine fed through an io.Pipe; Feed hands bytes to the decompressor and
// Close waits for it to drain before forwarding the close downstream, so
// delivery order is deterministic.
type GzipDecoder struct {
	mu         sync.Mutex
	downstream Sink

	started   bool
	pw        *io.PipeWriter
	done      chan struct{}
	decodeErr error // written by the decode goroutine before done closes

	closeOnce sync.Once
}

// NewGzipDecoder creates a decoder stage. Wire it with Pipeline.Insert.
func NewGzipDecoder() *GzipDecoder {
	return &GzipDecoder{}
}

// SetDownstream wires the sink that receives decompressed output.
func (g *GzipDecoder) SetDownstream(s Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.downstream = s
}

// Downstream returns the currently wired sink.
func (g *GzipDecoder) Downstream() Sink {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.downstream
}

// TakePending returns nil: compressed bytes already handed to the
// decompressor cannot be surrendered. Removing a live gzip stage mid-stream
// is not a supported operation.
func (g *GzipDecoder) TakePending() []byte {
	return nil
}

// Feed hands compressed bytes to the decompressor. It returns an error once
// decoding has failed or the downstream has rejected output.
func (g *GzipDecoder) Feed(p []byte) error {
	g.start()

	if _, err := g.pw.Write(p); err != nil {
		return errors.WrapInvalid(err, "GzipDecoder", "Feed", "decode failed")
	}
	return nil
}

// Close ends the compressed stream, waits for the decompressor to deliver
// everything it can, then closes downstream exactly once. A decode error
// takes the place of a clean close.
func (g *GzipDecoder) Close(err error) {
	g.closeOnce.Do(func() {
		if g.started {
			_ = g.pw.Close()
			<-g.done
			if err == nil {
				err = g.decodeErr
			}
		}
		if ds := g.Downstream(); ds != nil {
			ds.Close(err)
		}
	})
}

func (g *GzipDecoder) start() {
	if g.started {
		return
	}
	g.started = true

	var pr *io.PipeReader
	pr, g.pw = io.Pipe()
	g.done = make(chan struct{})

	go g.decode(pr)
}

func (g *GzipDecoder) decode(pr *io.PipeReader) {
	defer close(g.done)

	zr, err := gzip.NewReader(pr)
	if err != nil {
		g.decodeErr = errors.WrapInvalid(err, "GzipDecoder", "decode", "invalid gzip header")
		pr.CloseWithError(g.decodeErr)
		return
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := zr.Read(buf)
		if n > 0 {
			if ferr := g.Downstream().Feed(buf[:n]); ferr != nil {
				g.decodeErr = ferr
				pr.CloseWithError(ferr)
				return
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			g.decodeErr = errors.WrapInvalid(err, "GzipDecoder", "decode", "corrupt gzip stream")
			pr.CloseWithError(g.decodeErr)
			return
		}
	}
}

package filter

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/c360/camstream/errors"
)

type chunkState int

const (
	chunkSize chunkState = iota // awaiting a size line
	chunkData                   // inside chunk data
	chunkCRLF                   // awaiting the CRLF after chunk data
	chunkTrailers               // consuming trailer lines after the zero chunk
	chunkDone                   // stream fully decoded, extra bytes discarded
)

// ChunkedDecoder decodes the HTTP/1.1 chunked transfer coding incrementally.
// Partial frames stay buffered across Feed calls, so input may arrive in
// arbitrary slices. The terminal zero chunk and any trailers are consumed
// and discarded.
type ChunkedDecoder struct {
	baseStage
	buf       []byte
	state     chunkState
	remaining int
}

// NewChunkedDecoder creates a decoder stage. Wire it with Pipeline.Insert.
func NewChunkedDecoder() *ChunkedDecoder {
	return &ChunkedDecoder{}
}

// Feed consumes raw chunk-framed bytes, forwarding decoded data downstream.
// A malformed size line or a missing chunk terminator is an error.
func (c *ChunkedDecoder) Feed(p []byte) error {
	c.buf = append(c.buf, p...)

	for {
		switch c.state {
		case chunkSize:
			idx := bytes.Index(c.buf, []byte("\r\n"))
			if idx < 0 {
				return nil
			}
			line := c.buf[:idx]
			c.buf = c.buf[idx+2:]

			// Chunk extensions follow a semicolon and are ignored
			if semi := bytes.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi]
			}

			size, err := strconv.ParseUint(string(bytes.TrimSpace(line)), 16, 32)
			if err != nil {
				return errors.WrapInvalid(err, "ChunkedDecoder", "Feed",
					fmt.Sprintf("malformed chunk size line %q", line))
			}

			if size == 0 {
				c.state = chunkTrailers
			} else {
				c.remaining = int(size)
				c.state = chunkData
			}

		case chunkData:
			if len(c.buf) == 0 {
				return nil
			}
			n := c.remaining
			if n > len(c.buf) {
				n = len(c.buf)
			}
			data := c.buf[:n]
			c.buf = c.buf[n:]
			c.remaining -= n

			if err := c.downstream.Feed(data); err != nil {
				return err
			}

			if c.remaining == 0 {
				c.state = chunkCRLF
			}

		case chunkCRLF:
			if len(c.buf) < 2 {
				return nil
			}
			if c.buf[0] != '\r' || c.buf[1] != '\n' {
				return errors.WrapInvalid(
					fmt.Errorf("expected CRLF after chunk data, got %q", c.buf[:2]),
					"ChunkedDecoder", "Feed", "missing chunk terminator")
			}
			c.buf = c.buf[2:]
			c.state = chunkSize

		case chunkTrailers:
			idx := bytes.Index(c.buf, []byte("\r\n"))
			if idx < 0 {
				return nil
			}
			line := c.buf[:idx]
			c.buf = c.buf[idx+2:]
			if len(line) == 0 {
				c.state = chunkDone
			}

		case chunkDone:
			c.buf = nil
			return nil
		}
	}
}

// Close flushes nothing (decoded data is forwarded as it arrives) and
// passes the close straight through. A close mid-chunk simply truncates;
// the consumer decides what a short stream means.
func (c *ChunkedDecoder) Close(err error) {
	c.downstream.Close(err)
}

// TakePending surrenders buffered wire bytes not yet decoded.
func (c *ChunkedDecoder) TakePending() []byte {
	pending := c.buf
	c.buf = nil
	return pending
}

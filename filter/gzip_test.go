package filter

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestGzipDecoder_Roundtrip(t *testing.T) {
	terminal := &captureSink{}
	dec := NewGzipDecoder()
	dec.SetDownstream(terminal)

	plain := []byte("hello compressed world")
	require.NoError(t, dec.Feed(gzipBytes(t, plain)))
	dec.Close(nil)

	assert.Equal(t, plain, terminal.data)
	assert.True(t, terminal.closed)
	assert.NoError(t, terminal.closeErr)
}

func TestGzipDecoder_ByteAtATime(t *testing.T) {
	terminal := &captureSink{}
	dec := NewGzipDecoder()
	dec.SetDownstream(terminal)

	plain := []byte(strings.Repeat("line of camera event data\r\n", 40))
	wire := gzipBytes(t, plain)

	for i := 0; i < len(wire); i++ {
		require.NoError(t, dec.Feed(wire[i : i+1]))
	}
	dec.Close(nil)

	assert.Equal(t, plain, terminal.data)
}

func TestGzipDecoder_CloseWaitsForDrain(t *testing.T) {
	terminal := &captureSink{}
	dec := NewGzipDecoder()
	dec.SetDownstream(terminal)

	// Large enough that decode spans several internal reads
	plain := bytes.Repeat([]byte("0123456789"), 20000)

	require.NoError(t, dec.Feed(gzipBytes(t, plain)))
	dec.Close(nil)

	// Every decoded byte must land before the close
	require.True(t, terminal.closed)
	assert.Equal(t, len(plain), len(terminal.data))
	assert.Equal(t, plain, terminal.data)
}

func TestGzipDecoder_InvalidHeader(t *testing.T) {
	terminal := &captureSink{}
	dec := NewGzipDecoder()
	dec.SetDownstream(terminal)

	_ = dec.Feed([]byte("this is not gzip data at all"))
	dec.Close(nil)

	require.True(t, terminal.closed)
	assert.Error(t, terminal.closeErr)
}

func TestGzipDecoder_TruncatedStream(t *testing.T) {
	terminal := &captureSink{}
	dec := NewGzipDecoder()
	dec.SetDownstream(terminal)

	wire := gzipBytes(t, []byte(strings.Repeat("x", 4096)))
	require.NoError(t, dec.Feed(wire[:len(wire)/2]))
	dec.Close(nil)

	require.True(t, terminal.closed)
	assert.Error(t, terminal.closeErr)
}

func TestGzipDecoder_CloseIdempotent(t *testing.T) {
	terminal := &captureSink{}
	dec := NewGzipDecoder()
	dec.SetDownstream(terminal)

	require.NoError(t, dec.Feed(gzipBytes(t, []byte("once"))))
	dec.Close(nil)
	dec.Close(fmt.Errorf("second close must not land"))

	assert.NoError(t, terminal.closeErr)
	assert.Equal(t, "once", string(terminal.data))
}

// Chunked transfer coding wrapping a gzip body decodes to the original
// bytes regardless of how chunk boundaries align with gzip frames.
func TestPipeline_ChunkedGzipCompose(t *testing.T) {
	plain := []byte(strings.Repeat("motion capture frame metadata\n", 100))
	compressed := gzipBytes(t, plain)

	// Frame the compressed body into uneven chunks
	var wire bytes.Buffer
	sizes := []int{1, 7, 64, 3, 256}
	rest := compressed
	i := 0
	for len(rest) > 0 {
		n := sizes[i%len(sizes)]
		i++
		if n > len(rest) {
			n = len(rest)
		}
		fmt.Fprintf(&wire, "%x\r\n", n)
		wire.Write(rest[:n])
		wire.WriteString("\r\n")
		rest = rest[n:]
	}
	wire.WriteString("0\r\n\r\n")

	terminal := &captureSink{}
	p := NewPipeline(terminal)

	// Wire order: connection -> chunked -> gzip -> terminal
	gz := NewGzipDecoder()
	require.NoError(t, p.Insert(gz, terminal, nil))
	require.NoError(t, p.Insert(NewChunkedDecoder(), gz, nil))

	// Deliver the wire bytes in awkward slices
	for off := 0; off < wire.Len(); off += 11 {
		end := off + 11
		if end > wire.Len() {
			end = wire.Len()
		}
		require.NoError(t, p.Feed(wire.Bytes()[off:end]))
	}
	p.Close(nil)

	require.True(t, terminal.closed)
	assert.NoError(t, terminal.closeErr)
	assert.Equal(t, plain, terminal.data)
}

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/go-mp3"
)

const decodeChunk = 16 * 1024

// parseHeader parses the first frame of an MP3 stream. Bytes that are not MP3 fail
// here, before any output resource is touched.
func parseHeader(data []byte) (*mp3.Decoder, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid mp3 stream: %w", err)
	}
	if dec.SampleRate() <= 0 {
		return nil, errors.New("invalid mp3 stream: no sample rate")
	}
	return dec, nil
}

// pcmBuffer is a decoded stream that can be read while decoding continues.
type pcmBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	done   bool
	closed bool
	err    error
}

func newPCMBuffer() *pcmBuffer {
	b := &pcmBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// newCompleteBuffer wraps already decoded PCM.
func newCompleteBuffer(pcm []byte) *pcmBuffer {
	b := newPCMBuffer()
	b.data = pcm
	b.done = true
	return b
}

func (b *pcmBuffer) append(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	b.cond.Broadcast()
	return len(b.data)
}

func (b *pcmBuffer) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.err = err
	b.cond.Broadcast()
}

func (b *pcmBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.data = nil
	b.cond.Broadcast()
}

func (b *pcmBuffer) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// complete returns the decoded PCM once decoding has finished.
func (b *pcmBuffer) complete() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data, b.done && !b.closed
}

func (b *pcmBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *pcmBuffer) reader() *pcmReader {
	return &pcmReader{buf: b}
}

// pcmReader reads a pcmBuffer from the start, waiting for data that has not
// been decoded yet.
type pcmReader struct {
	buf *pcmBuffer
	off int
}

func (r *pcmReader) Read(p []byte) (int, error) {
	b := r.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	for r.off >= len(b.data) && !b.done && !b.closed {
		b.cond.Wait()
	}
	if b.closed || r.off >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[r.off:])
	r.off += n
	return n, nil
}

// exhausted reports whether every decoded byte has been read.
func (r *pcmReader) exhausted() bool {
	b := r.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed || (b.done && r.off >= len(b.data))
}

func (r *pcmReader) offset() int {
	r.buf.mu.Lock()
	defer r.buf.mu.Unlock()
	return r.off
}

// decodeInto decodes dec into buf until EOF or ctx is done. progress is
// called with the buffered byte count after each chunk. A corrupt frame
// mid-stream ends the stream at the last good frame.
func decodeInto(ctx context.Context, dec *mp3.Decoder, buf *pcmBuffer, progress func(buffered int)) error {
	chunk := make([]byte, decodeChunk)
	for {
		if ctx.Err() != nil {
			buf.finish(ctx.Err())
			return ctx.Err()
		}

		n, err := dec.Read(chunk)
		if n > 0 {
			progress(buf.append(chunk[:n]))
		}
		if errors.Is(err, io.EOF) {
			buf.finish(nil)
			return nil
		}
		if err != nil {
			buf.finish(err)
			return err
		}
	}
}

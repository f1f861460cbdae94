package blobstore

import (
	"bytes"
	"io"
)

// Payload is the byte source handed to BlobStore.Upload.
//
// StreamPayload forwards a live reader; BufferPayload wraps bytes that are
// already in memory. Both produce the same stored blob for the same content.
type Payload interface {
	Reader() io.Reader
	// Size returns the payload length, or -1 when a stream does not declare it.
	Size() int64
	Streamed() bool
	payload()
}

// StreamPayload is a payload read once from a live stream.
type StreamPayload struct {
	r    io.Reader
	size int64
}

// NewStreamPayload wraps r. size may be -1 when unknown.
func NewStreamPayload(r io.Reader, size int64) StreamPayload {
	if size < 0 {
		size = -1
	}
	return StreamPayload{r: r, size: size}
}

func (p StreamPayload) Reader() io.Reader {
	if p.r == nil {
		return bytes.NewReader(nil)
	}
	return p.r
}

func (p StreamPayload) Size() int64    { return p.size }
func (p StreamPayload) Streamed() bool { return true }
func (StreamPayload) payload()         {}

// BufferPayload is a fully materialized payload.
type BufferPayload struct {
	data []byte
}

// NewBufferPayload wraps data without copying it.
func NewBufferPayload(data []byte) BufferPayload {
	return BufferPayload{data: data}
}

func (p BufferPayload) Reader() io.Reader { return bytes.NewReader(p.data) }
func (p BufferPayload) Size() int64       { return int64(len(p.data)) }
func (p BufferPayload) Streamed() bool    { return false }
func (p BufferPayload) Bytes() []byte     { return p.data }
func (BufferPayload) payload()            {}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

package compressor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// Bzip2Codec implements the "bzip2" grpc-encoding. The standard library's
// compress/bzip2 is decode-only, so compression uses dsnet/compress,
// which provides a real bzip2 Writer.
type Bzip2Codec struct{}

func (b *Bzip2Codec) Name() string { return Bzip2 }

func (b *Bzip2Codec) Compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w, err := bzip2.NewWriter(buf, nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2 writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("bzip2 compress write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("bzip2 compress close: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (b *Bzip2Codec) Decompress(data []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2 reader: %w", err)
	}
	defer r.Close()

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("bzip2 decompress read: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

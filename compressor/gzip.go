package compressor

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sync"
)

// GzipCodec implements the "gzip" grpc-encoding.
type GzipCodec struct{}

func (g *GzipCodec) Name() string { return Gzip }

var gzipWriterPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

var gzipReaderPool = sync.Pool{
	New: func() any { return new(gzip.Reader) },
}

func (g *GzipCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	gz := gzipWriterPool.Get().(*gzip.Writer)
	gz.Reset(buf)
	defer gzipWriterPool.Put(gz)

	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compress write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress close: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (g *GzipCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	gz := gzipReaderPool.Get().(*gzip.Reader)
	defer gzipReaderPool.Put(gz)

	if err := gz.Reset(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("gzip decompress reset: %w", err)
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if _, err := io.Copy(buf, gz); err != nil {
		return nil, fmt.Errorf("gzip decompress read: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

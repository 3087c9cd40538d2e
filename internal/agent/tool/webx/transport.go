package webx

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	kflate "github.com/klauspost/compress/flate"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const acceptEncoding = "gzip, deflate, br, zstd"

// compressedTransport advertises gzip/deflate/br/zstd and transparently
// decompresses response bodies. Some sites serve brotli or zstd to
// browser-looking clients, which net/http will not decode on its own.
type compressedTransport struct {
	base http.RoundTripper
}

// newCompressedTransport wraps base (or a clone of the default
// transport). DisableCompression is forced on so the standard library
// does not double-handle encodings this transport owns.
func newCompressedTransport(base *http.Transport) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	base.DisableCompression = true
	return &compressedTransport{base: base}
}

func (t *compressedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Respect a caller-set Accept-Encoding.
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	ce := strings.ToLower(resp.Header.Get("Content-Encoding"))
	if ce == "" {
		return resp, nil
	}

	var reader io.ReadCloser
	switch ce {
	case "gzip":
		r, err := kgzip.NewReader(resp.Body)
		if err != nil {
			return resp, nil // hand back the raw body
		}
		reader = &decompressReader{reader: r, closer: resp.Body}
	case "deflate":
		reader = &decompressReader{reader: kflate.NewReader(resp.Body), closer: resp.Body}
	case "br":
		reader = &decompressReader{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	case "zstd":
		r, err := zstd.NewReader(resp.Body)
		if err != nil {
			return resp, nil
		}
		reader = &zstdReadCloser{decoder: r, body: resp.Body}
	default:
		return resp, nil
	}

	resp.Body = reader
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length") // stale once decompressed
	resp.ContentLength = -1
	return resp, nil
}

// decompressReader pairs a decompressing reader with the original body
// so Close releases both.
type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if c, ok := d.reader.(io.Closer); ok {
		_ = c.Close()
	}
	return d.closer.Close()
}

// zstdReadCloser exists because zstd.Decoder's Close returns nothing.
type zstdReadCloser struct {
	decoder *zstd.Decoder
	body    io.Closer
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.decoder.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.decoder.Close()
	return z.body.Close()
}

package httpx

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

func gzipCompress(data []byte) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write(data)
	_ = gz.Close()
	return buf.Bytes()
}

func brCompress(data []byte) []byte {
	var buf bytes.Buffer
	br := brotli.NewWriter(&buf)
	_, _ = br.Write(data)
	_ = br.Close()
	return buf.Bytes()
}

func zstdCompress(data []byte) []byte {
	var buf bytes.Buffer
	zw, _ := zstd.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

func zlibDeflateCompress(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

func rawDeflateCompress(data []byte) []byte {
	var buf bytes.Buffer
	dw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	_, _ = dw.Write(data)
	_ = dw.Close()
	return buf.Bytes()
}

func TestDecodeChain_NoEncoding(t *testing.T) {
	plain := []byte("hello world")
	decoded, changed, err := DecodeChain("", plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatalf("expected changed=false")
	}
	if !bytes.Equal(decoded, plain) {
		t.Fatalf("decoded body mismatch: got %q want %q", decoded, plain)
	}
}

func TestDecodeChain_SingleEncodings(t *testing.T) {
	plain := []byte("payload to compress")
	tests := []struct {
		encoding string
		comp     []byte
	}{
		{"gzip", gzipCompress(plain)},
		{"br", brCompress(plain)},
		{"zstd", zstdCompress(plain)},
		{"deflate", zlibDeflateCompress(plain)},
		{"deflate", rawDeflateCompress(plain)},
	}
	for _, tt := range tests {
		decoded, changed, err := DecodeChain(tt.encoding, tt.comp)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.encoding, err)
		}
		if !changed || !bytes.Equal(decoded, plain) {
			t.Fatalf("%s: decode failed", tt.encoding)
		}
	}
}

func TestDecodeChain_Identity_Compress_NoOp(t *testing.T) {
	plain := []byte("no-op encodings")
	decoded, changed, err := DecodeChain("identity, compress", plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatalf("expected no change for identity/compress")
	}
	if !bytes.Equal(decoded, plain) {
		t.Fatalf("decoded mismatch for identity/compress")
	}
}

func TestDecodeChain_UnknownEncoding_ReturnsError(t *testing.T) {
	if _, _, err := DecodeChain("foo", []byte("abc")); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

func TestDecodeChain_Chained_GzipThenBr(t *testing.T) {
	plain := []byte("chain payload")
	// Server applied gzip then br, so Content-Encoding: gzip, br
	comp := brCompress(gzipCompress(plain))
	decoded, changed, err := DecodeChain("gzip, br", comp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || !bytes.Equal(decoded, plain) {
		t.Fatalf("chained decode failed")
	}
}

func TestDecodeChain_CaseAndWhitespace(t *testing.T) {
	plain := []byte("gzip case payload")
	decoded, changed, err := DecodeChain("  GZip  ", gzipCompress(plain))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || !bytes.Equal(decoded, plain) {
		t.Fatalf("case-insensitive decode failed")
	}
}

func TestReadResponseBody_DecodesAndCloses(t *testing.T) {
	plain := []byte(`{"score":0.4}`)
	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"gzip"}},
		Body:   io.NopCloser(bytes.NewReader(gzipCompress(plain))),
	}
	got, err := ReadResponseBody(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("body mismatch: got %q want %q", got, plain)
	}
}

func TestReadResponseBody_PlainPassthrough(t *testing.T) {
	plain := []byte(`{"score":0.9}`)
	resp := &http.Response{
		Header: http.Header{},
		Body:   io.NopCloser(bytes.NewReader(plain)),
	}
	got, err := ReadResponseBody(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("body mismatch")
	}
}

package liftoff

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

type compressWriter struct {
	http.ResponseWriter
	writer io.Writer
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	return cw.writer.Write(b)
}

// Compress encodes responses with brotli or gzip depending on the Accept-Encoding of the request.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || r.Header.Get("Accept-Encoding") == "" {
			next.ServeHTTP(w, r)
			return
		}
		encoder := brotli.HTTPCompressor(w, r)
		defer encoder.Close()
		w.Header().Del("Content-Length")
		next.ServeHTTP(&compressWriter{ResponseWriter: w, writer: encoder}, r)
	})
}

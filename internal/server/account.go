package server

import (
	"context"
	"net/http"
)

// accountContextKey is the context key for the serving account name
type accountContextKey struct{}

// SetAccount stores the name of the upstream account serving this request so
// the middleware can surface it as a response header. Handlers call it after
// account selection.
func SetAccount(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if slot, ok := ctx.Value(accountContextKey{}).(*string); ok {
		*slot = name
	}
}

// AccountHeaderMiddleware writes the x-switchboard-account header naming the
// upstream account that served the request. The header is written before the
// first byte of the body, so handlers must pick their account before writing.
func AccountHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var account string
		ctx := context.WithValue(r.Context(), accountContextKey{}, &account)

		wrapped := &accountResponseWriter{ResponseWriter: w, account: &account}
		next.ServeHTTP(wrapped, r.WithContext(ctx))
	})
}

// accountResponseWriter wraps ResponseWriter to stamp the account header on
// first write.
type accountResponseWriter struct {
	http.ResponseWriter
	account     *string
	wroteHeader bool
}

func (rw *accountResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.writeAccountHeader()
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *accountResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.writeAccountHeader()
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *accountResponseWriter) writeAccountHeader() {
	if *rw.account != "" {
		rw.Header().Set("x-switchboard-account", *rw.account)
	}
}

// Flush forwards Flush to the underlying ResponseWriter if it supports http.Flusher.
func (rw *accountResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

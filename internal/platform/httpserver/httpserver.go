// Package httpserver constructs the admission service's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns the server for the given router. ReadHeaderTimeout guards
// against slowloris clients; no overall read timeout is set because
// document uploads may legitimately take a while on slow links.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Package main is a minimal HTTP health check binary for use in distroless
// containers. It exits 0 when the backend's /health endpoint returns HTTP 200,
// and 1 otherwise. Compile with CGO_ENABLED=0 for a fully static binary.
//
// The target is HEALTHCHECK_URL when set, otherwise localhost on
// HEALTHASSIST_PORT or PORT (default 5000).
package main

import (
	"net/http"
	"os"
	"time"
)

func main() {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(target())
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func target() string {
	if u := os.Getenv("HEALTHCHECK_URL"); u != "" {
		return u
	}
	port := "5000"
	for _, key := range []string{"HEALTHASSIST_PORT", "PORT"} {
		if p := os.Getenv(key); p != "" {
			port = p
			break
		}
	}
	return "http://localhost:" + port + "/health"
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTarget(t *testing.T) {
	t.Setenv("HEALTHCHECK_URL", "")
	t.Setenv("HEALTHASSIST_PORT", "")
	t.Setenv("PORT", "")
	assert.Equal(t, "http://localhost:5000/health", target())

	t.Setenv("PORT", "8081")
	assert.Equal(t, "http://localhost:8081/health", target())

	t.Setenv("HEALTHASSIST_PORT", "9090")
	assert.Equal(t, "http://localhost:9090/health", target())

	t.Setenv("HEALTHCHECK_URL", "http://backend:5000/health")
	assert.Equal(t, "http://backend:5000/health", target())
}

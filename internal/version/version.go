// Package version holds build metadata injected with -ldflags, plus the
// per-process instance identity used in logs, traces and health output.
package version

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Build metadata. Set via:
//
//	-ldflags "-X healthassist/internal/version.Version=v1.2.3
//	          -X healthassist/internal/version.GitCommit=abc123
//	          -X healthassist/internal/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info describes this binary and this process.
type Info struct {
	Version    string    `json:"version"`
	GitCommit  string    `json:"git_commit"`
	BuildDate  string    `json:"build_date"`
	InstanceID string    `json:"instance_id"`
	Hostname   string    `json:"hostname"`
	StartedAt  time.Time `json:"started_at"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns the process-wide Info. Instance ID, hostname and start
// time are fixed on the first call.
func GetInfo() Info {
	once.Do(func() {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.NewString(),
			Hostname:   hostname,
			StartedAt:  time.Now(),
		}
	})
	return info
}

// Uptime is the time since GetInfo was first called.
func (i Info) Uptime() time.Duration {
	if i.StartedAt.IsZero() {
		return 0
	}
	return time.Since(i.StartedAt).Truncate(time.Second)
}

// UserAgent identifies this service on outbound requests.
func (i Info) UserAgent() string {
	return "healthassist/" + i.Version
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("healthassist version %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}

package version

import (
	"strings"
	"testing"
	"time"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.InstanceID == "" {
		t.Error("InstanceID should not be empty")
	}
	if info.Hostname == "" {
		t.Error("Hostname should not be empty")
	}
	if info.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}

	again := GetInfo()
	if info.InstanceID != again.InstanceID {
		t.Errorf("InstanceID should be cached, got %s then %s", info.InstanceID, again.InstanceID)
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.0.0", GitCommit: "abc123", BuildDate: "2026-01-01"}

	s := info.String()
	for _, want := range []string{"healthassist", "v1.0.0", "abc123", "2026-01-01"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestUserAgent(t *testing.T) {
	info := Info{Version: "v2.3.4"}
	if got := info.UserAgent(); got != "healthassist/v2.3.4" {
		t.Errorf("UserAgent() = %q", got)
	}
}

func TestUptime(t *testing.T) {
	if (Info{}).Uptime() != 0 {
		t.Error("zero StartedAt should report zero uptime")
	}
	info := Info{StartedAt: time.Now().Add(-90 * time.Second)}
	if up := info.Uptime(); up < 89*time.Second || up > 91*time.Second {
		t.Errorf("unexpected uptime %v", up)
	}
}

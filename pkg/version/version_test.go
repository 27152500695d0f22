package version

import (
	"runtime"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	info := Get()

	// Unset ldflags leave the dev identity in place.
	if info.Version != "dev" {
		t.Errorf("Version = %q, want %q", info.Version, "dev")
	}
	if info.GitCommit != "unknown" {
		t.Errorf("GitCommit = %q, want %q", info.GitCommit, "unknown")
	}
	if info.BuildDate != "unknown" {
		t.Errorf("BuildDate = %q, want %q", info.BuildDate, "unknown")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("platform = %s/%s, want %s/%s", info.OS, info.Arch, runtime.GOOS, runtime.GOARCH)
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "tagged release truncates the commit",
			info: Info{
				Version:   "v1.2.3",
				GitCommit: "9f8a7b6c5d4e3f2a",
				BuildDate: "2025-08-20T14:11:02Z",
				GoVersion: "go1.24.0",
			},
			want: "accept-portal-dialog v1.2.3 (9f8a7b6c) built 2025-08-20T14:11:02Z with go1.24.0",
		},
		{
			name: "short commit kept whole",
			info: Info{
				Version:   "v1.2.3",
				GitCommit: "9f8a",
				BuildDate: "2025-08-20T14:11:02Z",
				GoVersion: "go1.24.0",
			},
			want: "accept-portal-dialog v1.2.3 (9f8a) built 2025-08-20T14:11:02Z with go1.24.0",
		},
		{
			name: "dev build",
			info: Info{
				Version:   "dev",
				GitCommit: "unknown",
				BuildDate: "unknown",
				GoVersion: "go1.24.0",
			},
			want: "accept-portal-dialog dev (unknown) built unknown with go1.24.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

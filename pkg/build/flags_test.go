// SPDX-License-Identifier: MIT
package build

import (
	"testing"
)

func setLDFlags(t *testing.T, name, version, commit, time string) {
	t.Helper()
	saved := [4]string{buildName, buildVersion, buildCommit, buildTime}
	savedInfo := current
	t.Cleanup(func() {
		buildName, buildVersion, buildCommit, buildTime = saved[0], saved[1], saved[2], saved[3]
		current = savedInfo
	})
	buildName, buildVersion, buildCommit, buildTime = name, version, commit, time
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name                 string
		ldName, ver, com, tm string
		wantErr              string
		want                 Info
	}{
		{
			name:    "Development build",
			wantErr: "missing ldflags: buildVersion, buildCommit, buildTime",
			want:    defaults(),
		},
		{
			name:    "Missing commit",
			ver:     "v0.3.0",
			tm:      "2026-10-19T10:00:00Z",
			wantErr: "missing ldflags: buildCommit",
			want:    defaults(),
		},
		{
			name: "Release without name",
			ver:  "v0.3.0", com: "0123456789abcdef", tm: "2026-10-19T10:00:00Z",
			want: Info{Name: Name, Description: Description, Version: "v0.3.0", Commit: "0123456789abcdef", Time: "2026-10-19T10:00:00Z"},
		},
		{
			name:   "Renamed release",
			ldName: "ambience-kiosk", ver: "v1.0.0", com: "abc", tm: "2026-10-19",
			want: Info{Name: "ambience-kiosk", Description: Description, Version: "v1.0.0", Commit: "abc", Time: "2026-10-19"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setLDFlags(t, tt.ldName, tt.ver, tt.com, tt.tm)

			err := Initialize()
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Errorf("Initialize() error = %v, want %q", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("Initialize() unexpected error: %v", err)
			}
			if got := Get(); got != tt.want {
				t.Errorf("Get() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFailedInitializeResetsRelease(t *testing.T) {
	setLDFlags(t, "", "v1.0.0", "abc", "now")
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	buildCommit = ""
	if err := Initialize(); err == nil {
		t.Fatal("expected error")
	}
	if !Get().Dev() {
		t.Errorf("Get() = %+v, want development defaults", Get())
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{defaults(), "ambience dev"},
		{Info{Name: "ambience", Version: "v0.3.0", Commit: "0123456789abcdef", Time: "2026-10-19"}, "ambience v0.3.0 (0123456, built 2026-10-19)"},
		{Info{Name: "ambience", Version: "v0.3.0", Commit: "abc", Time: "2026-10-19"}, "ambience v0.3.0 (abc, built 2026-10-19)"},
	}
	for _, tt := range tests {
		if got := tt.info.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if defaults().Description != Description {
		t.Error("defaults lost the description")
	}
}

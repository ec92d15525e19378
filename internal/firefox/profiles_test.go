package firefox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lotas/tabgruppen/internal/types"
)

const profilesINI = `[General]
StartWithLastProfile=1

[Profile0]
Name=default-release
IsRelative=1
Path=abc123.default-release
Default=1

[Profile1]
Name=dev-edition
IsRelative=0
Path=%s

[Profile2]
Name=empty
IsRelative=1
Path=never-used

[Install308046B0AF4A39CB]
Default=abc123.default-release
`

func writeSession(t *testing.T, profileDir, name string) {
	t.Helper()
	backups := filepath.Join(profileDir, "sessionstore-backups")
	if err := os.MkdirAll(backups, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(backups, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseProfilesINI(t *testing.T) {
	dir := t.TempDir()
	absDir := t.TempDir()
	iniPath := filepath.Join(dir, "profiles.ini")
	if err := os.WriteFile(iniPath, []byte(fmt.Sprintf(profilesINI, absDir)), 0o644); err != nil {
		t.Fatal(err)
	}
	writeSession(t, filepath.Join(dir, "abc123.default-release"), "recovery.jsonlz4")
	writeSession(t, absDir, "previous.jsonlz4")

	profiles, err := ParseProfilesINI(iniPath, dir)
	if err != nil {
		t.Fatalf("ParseProfilesINI: %v", err)
	}

	want := []types.Profile{
		{Name: "default-release", Path: filepath.Join(dir, "abc123.default-release"), IsDefault: true, IsRelative: true},
		{Name: "dev-edition", Path: absDir},
	}
	if len(profiles) != len(want) {
		t.Fatalf("got %d profiles, want %d: %+v", len(profiles), len(want), profiles)
	}
	for i, w := range want {
		if profiles[i] != w {
			t.Errorf("profile %d = %+v, want %+v", i, profiles[i], w)
		}
	}
}

func TestParseProfilesIgnoresOtherSections(t *testing.T) {
	profiles, err := parseProfiles(strings.NewReader("[Install1]\nName=nope\n[Profile0]\nName=a\nbroken line\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 || profiles[0].Name != "a" {
		t.Errorf("got %+v", profiles)
	}
}

func TestFindFirefoxDir(t *testing.T) {
	dir := FindFirefoxDir()
	if dir == "" {
		t.Skip("no Firefox directory found on this system")
	}
	t.Logf("found Firefox dir: %s", dir)
}

func TestSelectProfile(t *testing.T) {
	profiles := []types.Profile{
		{Name: "work", Path: "/p/work"},
		{Name: "default-release", Path: "/p/default", IsDefault: true},
	}

	p, err := SelectProfile(profiles, "")
	if err != nil || p.Name != "default-release" {
		t.Errorf("default: got %+v, %v", p, err)
	}
	p, err = SelectProfile(profiles, "Work")
	if err != nil || p.Path != "/p/work" {
		t.Errorf("by name: got %+v, %v", p, err)
	}
	if _, err := SelectProfile(profiles, "missing"); err == nil {
		t.Error("expected error for unknown profile")
	}
	if _, err := SelectProfile([]types.Profile{{Name: "a"}, {Name: "b"}}, ""); err == nil {
		t.Error("expected error without a default")
	}
}

package firefox

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lotas/tabgruppen/internal/types"
)

// FindFirefoxDir returns the platform-specific Firefox profile directory.
func FindFirefoxDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "linux":
		return filepath.Join(home, ".mozilla", "firefox")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	default:
		return ""
	}
}

// ParseProfilesINI reads profiles.ini and returns the profiles that have a
// saved session. Relative paths are resolved against firefoxDir.
func ParseProfilesINI(iniPath, firefoxDir string) ([]types.Profile, error) {
	f, err := os.Open(iniPath)
	if err != nil {
		return nil, fmt.Errorf("open profiles.ini: %w", err)
	}
	defer f.Close()

	profiles, err := parseProfiles(f)
	if err != nil {
		return nil, fmt.Errorf("scan profiles.ini: %w", err)
	}

	var usable []types.Profile
	for _, p := range profiles {
		if p.IsRelative {
			p.Path = filepath.Join(firefoxDir, p.Path)
		}
		if hasSession(p.Path) {
			usable = append(usable, p)
		}
	}
	return usable, nil
}

// parseProfiles collects the [ProfileN] sections of an ini file. Other
// sections, such as [General] and [Install...], are ignored.
func parseProfiles(r io.Reader) ([]types.Profile, error) {
	var profiles []types.Profile
	inProfile := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if section, ok := strings.CutPrefix(line, "["); ok && strings.HasSuffix(section, "]") {
			inProfile = strings.HasPrefix(section, "Profile")
			if inProfile {
				profiles = append(profiles, types.Profile{})
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !inProfile || !ok {
			continue
		}

		p := &profiles[len(profiles)-1]
		switch key {
		case "Name":
			p.Name = value
		case "Path":
			p.Path = value
		case "IsRelative":
			p.IsRelative = value == "1"
		case "Default":
			p.IsDefault = value == "1"
		}
	}
	return profiles, scanner.Err()
}

func hasSession(profileDir string) bool {
	for _, name := range sessionFiles {
		if _, err := os.Stat(filepath.Join(profileDir, "sessionstore-backups", name)); err == nil {
			return true
		}
	}
	return false
}

// SelectProfile picks the profile called name, or the default profile when
// name is empty. A single profile is used even if it is not marked default.
func SelectProfile(profiles []types.Profile, name string) (types.Profile, error) {
	if name != "" {
		for _, p := range profiles {
			if strings.EqualFold(p.Name, name) {
				return p, nil
			}
		}
		return types.Profile{}, fmt.Errorf("profile %q not found", name)
	}
	for _, p := range profiles {
		if p.IsDefault {
			return p, nil
		}
	}
	if len(profiles) == 1 {
		return profiles[0], nil
	}
	return types.Profile{}, fmt.Errorf("no default profile among %d, pass --profile", len(profiles))
}

// DiscoverProfiles finds and parses Firefox profiles on this system.
func DiscoverProfiles() ([]types.Profile, error) {
	dir := FindFirefoxDir()
	if dir == "" {
		return nil, fmt.Errorf("could not find Firefox directory for %s", runtime.GOOS)
	}
	iniPath := filepath.Join(dir, "profiles.ini")
	return ParseProfilesINI(iniPath, dir)
}

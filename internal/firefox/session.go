// Package firefox reads saved Firefox sessions so grouping can be planned
// offline, without a running browser.
package firefox

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/lotas/tabgruppen/internal/tabstore"
	"github.com/lotas/tabgruppen/internal/types"
)

var mozLz4Magic = []byte("mozLz40\x00")

// sessionFiles are tried in order: the live session, then the last closed
// one.
var sessionFiles = []string{"recovery.jsonlz4", "previous.jsonlz4"}

// DecompressMozLz4 decompresses Mozilla's mozlz4 format: the magic
// "mozLz40\x00", a little-endian uint32 uncompressed size, then one raw lz4
// block.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:len(mozLz4Magic)], mozLz4Magic) {
		return nil, errors.New("mozlz4: invalid header magic")
	}

	dst := make([]byte, binary.LittleEndian.Uint32(data[8:12]))
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}

type sessionEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type sessionTab struct {
	Entries      []sessionEntry `json:"entries"`
	Index        int            `json:"index"` // 1-based into Entries
	LastAccessed int64          `json:"lastAccessed"`
	Image        string         `json:"image"`
	GroupID      string         `json:"groupId"`
	Pinned       bool           `json:"pinned"`
	Hidden       bool           `json:"hidden"`
}

type sessionGroup struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

type sessionWindow struct {
	Tabs     []sessionTab   `json:"tabs"`
	Groups   []sessionGroup `json:"groups"`
	Selected int            `json:"selected"` // 1-based active tab
}

type sessionFile struct {
	Windows []sessionWindow `json:"windows"`
}

// ParseSession converts session JSON into tabs and groups. Firefox keys
// groups by string; they are numbered from 1 in order of appearance. Tabs
// and windows are numbered from 1 as well. Hidden tabs are skipped.
func ParseSession(data []byte) (*types.SessionData, error) {
	var raw sessionFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	sd := &types.SessionData{ParsedAt: time.Now()}
	nextTab, nextGroup := 1, 1

	for w, window := range raw.Windows {
		windowID := w + 1
		groupIDs := make(map[string]int, len(window.Groups))
		for _, g := range window.Groups {
			color := types.Color(g.Color)
			if !color.Valid() {
				color = types.ColorGrey
			}
			groupIDs[g.ID] = nextGroup
			sd.Groups = append(sd.Groups, &types.Group{
				ID:        nextGroup,
				WindowID:  windowID,
				Title:     g.Name,
				Color:     color,
				Collapsed: g.Collapsed,
			})
			nextGroup++
		}

		for i, st := range window.Tabs {
			if len(st.Entries) == 0 || st.Hidden {
				continue
			}
			entry := st.Entries[len(st.Entries)-1]
			if k := st.Index - 1; k >= 0 && k < len(st.Entries) {
				entry = st.Entries[k]
			}

			groupID, ok := groupIDs[st.GroupID]
			if !ok {
				groupID = types.NoGroup
			}
			tab := &types.Tab{
				ID:       nextTab,
				URL:      entry.URL,
				Title:    entry.Title,
				GroupID:  groupID,
				WindowID: windowID,
				Index:    i,
				Pinned:   st.Pinned,
				Active:   window.Selected == i+1,
				Favicon:  st.Image,
				Status:   "complete",
			}
			if st.LastAccessed > 0 {
				tab.LastAccessed = time.UnixMilli(st.LastAccessed)
			}
			sd.Tabs = append(sd.Tabs, tab)
			nextTab++
		}
	}
	return sd, nil
}

// ReadSessionFile reads and parses the newest session file of a profile.
func ReadSessionFile(profileDir string) (*types.SessionData, error) {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	for _, name := range sessionFiles {
		data, err := os.ReadFile(filepath.Join(backupDir, name))
		if err != nil {
			continue
		}
		decompressed, err := DecompressMozLz4(data)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", name, err)
		}
		return ParseSession(decompressed)
	}
	return nil, fmt.Errorf("no session file found in %s", backupDir)
}

// Store loads a parsed session into an in-memory tab store.
func Store(sd *types.SessionData) *tabstore.Memory {
	return tabstore.NewMemory(sd.Tabs, sd.Groups)
}

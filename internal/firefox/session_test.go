package firefox

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/pierrec/lz4/v4"

	"github.com/lotas/tabgruppen/internal/types"
)

// mozlz4 wraps data the way Firefox writes session files.
func mozlz4(t *testing.T, data []byte) []byte {
	t.Helper()
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		t.Fatalf("lz4.CompressBlock failed: %v", err)
	}
	out := append([]byte{}, mozLz4Magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, dst[:n]...)
}

func TestDecompressMozLz4(t *testing.T) {
	t.Run("valid mozlz4 payload", func(t *testing.T) {
		original := []byte(`{"windows":[{"tabs":[]}]}`)
		result, err := DecompressMozLz4(mozlz4(t, original))
		if err != nil {
			t.Fatalf("DecompressMozLz4 returned error: %v", err)
		}
		if string(result) != string(original) {
			t.Errorf("expected %q, got %q", original, result)
		}
	})

	t.Run("invalid header returns error", func(t *testing.T) {
		if _, err := DecompressMozLz4([]byte("BADMAGIC\x00\x00\x00\x00some data here")); err == nil {
			t.Fatal("expected error for invalid header, got nil")
		}
	})

	t.Run("too short data returns error", func(t *testing.T) {
		if _, err := DecompressMozLz4([]byte("mozLz40")); err == nil {
			t.Fatal("expected error for too-short data, got nil")
		}
	})
}

func TestParseSession(t *testing.T) {
	session := map[string]any{
		"windows": []map[string]any{
			{
				"selected": 2,
				"tabs": []map[string]any{
					{
						"entries":      []map[string]any{{"url": "https://example.com", "title": "Example"}},
						"index":        1,
						"lastAccessed": 1707654321000,
						"groupId":      "group-1",
						"pinned":       true,
					},
					{
						"entries": []map[string]any{
							{"url": "https://old.com", "title": "Old Page"},
							{"url": "https://current.com", "title": "Current Page"},
						},
						"index": 2,
					},
					{
						"entries": []map[string]any{{"url": "https://hidden.com"}},
						"hidden":  true,
					},
				},
				"groups": []map[string]any{
					{"id": "group-1", "name": "Work", "color": "blue"},
				},
			},
			{
				"tabs": []map[string]any{
					{"entries": []map[string]any{{"url": "https://second.com"}}, "groupId": "g2"},
				},
				"groups": []map[string]any{
					{"id": "g2", "name": "Second", "color": "orange"},
				},
			},
		},
	}
	data, _ := json.Marshal(session)

	sd, err := ParseSession(data)
	if err != nil {
		t.Fatalf("ParseSession returned error: %v", err)
	}

	if len(sd.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(sd.Groups))
	}
	if g := sd.Groups[0]; g.ID != 1 || g.Title != "Work" || g.Color != types.ColorBlue || g.WindowID != 1 {
		t.Errorf("first group = %+v", g)
	}
	if g := sd.Groups[1]; g.ID != 2 || g.WindowID != 2 || g.Color != types.ColorGrey {
		t.Errorf("second group = %+v", g)
	}

	if len(sd.Tabs) != 3 {
		t.Fatalf("expected 3 tabs (hidden skipped), got %d", len(sd.Tabs))
	}
	tab0 := sd.Tabs[0]
	if tab0.ID != 1 || tab0.GroupID != 1 || !tab0.Pinned || tab0.Active {
		t.Errorf("tab0 = %+v", tab0)
	}
	if tab0.LastAccessed.UnixMilli() != 1707654321000 {
		t.Errorf("tab0 LastAccessed = %d", tab0.LastAccessed.UnixMilli())
	}

	tab1 := sd.Tabs[1]
	if tab1.URL != "https://current.com" || tab1.Title != "Current Page" {
		t.Errorf("tab1 should show its current entry, got %q %q", tab1.URL, tab1.Title)
	}
	if tab1.Grouped() || !tab1.Active {
		t.Errorf("tab1 = %+v", tab1)
	}

	if tab2 := sd.Tabs[2]; tab2.ID != 3 || tab2.WindowID != 2 || tab2.GroupID != 2 {
		t.Errorf("tab2 = %+v", tab2)
	}
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lotas/tabgruppen/internal/types"
)

// LastActionKey is the settings key holding the most recent grouping
// action, read by the extension popup.
const LastActionKey = "lastAutoGroupAction"

// SaveUndoHistory replaces the stored undo history with actions, newest
// first, and keeps the last-action setting in step with it.
func SaveUndoHistory(ctx context.Context, db *sql.DB, actions []types.GroupingAction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM undo_actions"); err != nil {
		return fmt.Errorf("clear undo history: %w", err)
	}
	for i, a := range actions {
		_, err := tx.ExecContext(ctx, `
INSERT INTO undo_actions (id, position, tab_id, window_id, from_group_id, to_group_id,
    created_new_group, group_title, group_color, reasoning, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, i, a.TabID, a.WindowID, a.FromGroupID, a.ToGroupID,
			a.CreatedNewGroup, a.GroupTitle, string(a.GroupColor), a.Reasoning, a.Timestamp.UTC())
		if err != nil {
			return fmt.Errorf("insert undo action %s: %w", a.ID, err)
		}
	}

	if len(actions) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", LastActionKey); err != nil {
			return fmt.Errorf("clear last action: %w", err)
		}
	} else {
		data, err := json.Marshal(actions[0])
		if err != nil {
			return fmt.Errorf("marshal last action: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			LastActionKey, string(data))
		if err != nil {
			return fmt.Errorf("store last action: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadUndoHistory returns the stored undo history, newest first.
func LoadUndoHistory(ctx context.Context, db *sql.DB) ([]types.GroupingAction, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, tab_id, window_id, from_group_id, to_group_id, created_new_group,
       group_title, group_color, reasoning, created_at
FROM undo_actions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query undo history: %w", err)
	}
	defer rows.Close()

	var out []types.GroupingAction
	for rows.Next() {
		var (
			a     types.GroupingAction
			color string
			ts    time.Time
		)
		if err := rows.Scan(&a.ID, &a.TabID, &a.WindowID, &a.FromGroupID, &a.ToGroupID,
			&a.CreatedNewGroup, &a.GroupTitle, &color, &a.Reasoning, &ts); err != nil {
			return nil, fmt.Errorf("scan undo action: %w", err)
		}
		a.GroupColor = types.Color(color)
		a.Timestamp = ts
		out = append(out, a)
	}
	return out, rows.Err()
}

// LastAction returns the stored last-action entry, or nil.
func LastAction(ctx context.Context, db *sql.DB) (*types.GroupingAction, error) {
	raw, ok, err := GetSetting(ctx, db, LastActionKey)
	if err != nil || !ok {
		return nil, err
	}
	var a types.GroupingAction
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("decode last action: %w", err)
	}
	return &a, nil
}

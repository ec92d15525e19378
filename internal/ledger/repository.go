package ledger

import (
	"context"
	"database/sql"
	"slices"
	"sync"

	"github.com/lotas/tabgruppen/internal/storage"
	"github.com/lotas/tabgruppen/internal/types"
)

// SQLRepository keeps the history in the undo_actions table.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository creates a repository on an open database.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Load(ctx context.Context) ([]types.GroupingAction, error) {
	return storage.LoadUndoHistory(ctx, r.db)
}

func (r *SQLRepository) Save(ctx context.Context, actions []types.GroupingAction) error {
	return storage.SaveUndoHistory(ctx, r.db, actions)
}

// MemoryRepository keeps the history in memory. Offline planning uses it
// so dry runs leave the database untouched.
type MemoryRepository struct {
	mu      sync.Mutex
	actions []types.GroupingAction
}

func (r *MemoryRepository) Load(ctx context.Context) ([]types.GroupingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.actions), nil
}

func (r *MemoryRepository) Save(ctx context.Context, actions []types.GroupingAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = slices.Clone(actions)
	return nil
}

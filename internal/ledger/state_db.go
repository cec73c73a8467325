package ledger

import (
	"context"

	"xstaking/internal/storage/postgres"
)

// DBStateStore stores state in the replay_state table.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (Cursor, bool, error) {
	if s == nil || s.Store == nil {
		return Cursor{}, false, nil
	}
	st, ok, err := s.Store.LoadState(ctx, s.Name)
	if err != nil || !ok {
		return Cursor{}, false, err
	}
	return Cursor{Slot: st.Slot, Signature: st.Signature, LogIndex: st.LogIndex}, true, nil
}

func (s *DBStateStore) Save(ctx context.Context, cursor Cursor) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, postgres.State{
		Slot:      cursor.Slot,
		Signature: cursor.Signature,
		LogIndex:  cursor.LogIndex,
	})
}

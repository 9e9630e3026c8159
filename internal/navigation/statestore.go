package navigation

import (
	"context"
	"fmt"
	"time"

	"admin_dashboard/internal/cache"
)

const stateKeyPrefix = "navstate:"

// StateStore keeps each session's selection state in the cache, so it lives
// exactly as long as the login session.
type StateStore struct {
	cache   cache.Cache
	homeKey string
	ttl     time.Duration
}

func NewStateStore(c cache.Cache, homeKey string, ttl time.Duration) *StateStore {
	return &StateStore{cache: c, homeKey: homeKey, ttl: ttl}
}

// Load returns the session's state, or a fresh home state when none is
// stored. On a cache failure the fresh state is returned with the error.
func (s *StateStore) Load(ctx context.Context, sessionID string) (*State, error) {
	var st State
	if err := cache.GetJSON(ctx, s.cache, stateKeyPrefix+sessionID, &st); err != nil {
		if cache.IsNotFound(err) {
			return NewState(s.homeKey), nil
		}
		return NewState(s.homeKey), fmt.Errorf("load navigation state: %w", err)
	}
	if st.CurrentPageKey == "" {
		st.CurrentPageKey = s.homeKey
	}
	if st.OpenKeys == nil {
		st.OpenKeys = []string{}
	}
	return &st, nil
}

// Save stores the state for the session.
func (s *StateStore) Save(ctx context.Context, sessionID string, st *State) error {
	if err := cache.SetJSON(ctx, s.cache, stateKeyPrefix+sessionID, st, s.ttl); err != nil {
		return fmt.Errorf("save navigation state: %w", err)
	}
	return nil
}

// Delete forgets the session's state, typically on logout.
func (s *StateStore) Delete(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, stateKeyPrefix+sessionID)
}

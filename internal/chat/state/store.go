// internal/chat/state/store.go
package state

import (
	"context"
	"encoding/json"
	"time"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix  = "chat:state:"
	paramsKeyPrefix = "chat:params:"
	nameKeyPrefix   = "chat:name:"

	// Captured user names outlive the clarification window.
	nameTTL = 24 * time.Hour
)

// Store persists conversation state in Redis under a sliding TTL. State and
// partial parameters live under separate keys so a parameter update never
// implicitly changes state and vice versa.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewStore(client *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "state-store"}),
	}
}

// Get returns the conversation state for a session. A missing key, an expired
// key or an unavailable cache all read back as the default empty state; the
// conversation degrades to "always a new turn" instead of crashing.
func (s *Store) Get(ctx context.Context, sessionID string) *models.ConversationState {
	st := models.NewConversationState(sessionID)

	val, err := s.client.Get(ctx, stateKeyPrefix+sessionID).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("state read failed, degrading to empty state", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
		}
		return st
	}
	st.StateName = models.StateName(val)

	raw, err := s.client.Get(ctx, paramsKeyPrefix+sessionID).Result()
	if err == nil {
		var params map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &params); err == nil {
			st.PartialParameters = params
		}
	}

	return st
}

// Save persists state and partial parameters and resets the TTL window, so
// every successful turn extends the clarification deadline. Saving StateNone
// deletes both keys (explicit state clearing).
func (s *Store) Save(ctx context.Context, sessionID string, stateName models.StateName, params map[string]interface{}) error {
	if stateName == models.StateNone || stateName == "" {
		return s.Clear(ctx, sessionID)
	}

	if err := s.client.Set(ctx, stateKeyPrefix+sessionID, string(stateName), s.ttl).Err(); err != nil {
		return stderrors.NewStateStoreUnavailableError(err)
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, paramsKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return stderrors.NewStateStoreUnavailableError(err)
	}
	return nil
}

// Clear removes both the state and parameter keys for a session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, stateKeyPrefix+sessionID, paramsKeyPrefix+sessionID).Err(); err != nil {
		return stderrors.NewStateStoreUnavailableError(err)
	}
	return nil
}

// GetName returns the captured user name for a session, or empty. The name
// lives under its own key so the greeting flow never touches tool parameters.
func (s *Store) GetName(ctx context.Context, sessionID string) string {
	val, err := s.client.Get(ctx, nameKeyPrefix+sessionID).Result()
	if err != nil {
		return ""
	}
	return val
}

// SaveName stores the captured user name.
func (s *Store) SaveName(ctx context.Context, sessionID, name string) error {
	if err := s.client.Set(ctx, nameKeyPrefix+sessionID, name, nameTTL).Err(); err != nil {
		return stderrors.NewStateStoreUnavailableError(err)
	}
	return nil
}

package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Dialog steps.
const (
	StepRegistration        = "REGISTRATION"
	StepRoleSelection       = "ROLE_SELECTION"
	StepNameInput           = "NAME_INPUT"
	StepContactInput        = "CONTACT_INPUT"
	StepLocationInput       = "LOCATION_INPUT"
	StepMainMenu            = "MAIN_MENU"
	StepWaitingCollector    = "WAITING_COLLECTOR"
	StepWaitingVerification = "WAITING_VERIFICATION"
	StepWaitingWeight       = "WAITING_WEIGHT"
)

// DialogState is the per-sender conversation position. It lives in an
// external store keyed by sender id, so restarts and concurrent
// instances see the same dialog.
type DialogState struct {
	Step              string    `json:"step"`
	Role              Role      `json:"role,omitempty"`
	Name              string    `json:"name,omitempty"`
	Contact           string    `json:"contact,omitempty"`
	Location          *Location `json:"location,omitempty"`
	CurrentRequestID  string    `json:"current_request_id,omitempty"`
	CurrentExchangeID string    `json:"current_exchange_id,omitempty"`
}

// StateStore persists dialog state between webhook invocations.
type StateStore interface {
	Get(ctx context.Context, senderID int64) (*DialogState, error)
	Set(ctx context.Context, senderID int64, state *DialogState) error
	Clear(ctx context.Context, senderID int64) error
}

// stateBackend is the byte-level API the Redis client provides.
type stateBackend interface {
	GetState(ctx context.Context, key string) ([]byte, error)
	SetState(ctx context.Context, key string, val []byte, ttl time.Duration) error
	ClearState(ctx context.Context, key string) error
}

// RedisStateStore keeps dialog state as JSON values with a TTL, so
// abandoned dialogs expire on their own.
type RedisStateStore struct {
	backend stateBackend
	ttl     time.Duration
}

func NewRedisStateStore(backend stateBackend, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{backend: backend, ttl: ttl}
}

func stateKey(senderID int64) string {
	return fmt.Sprintf("exchange_state:%d", senderID)
}

func (s *RedisStateStore) Get(ctx context.Context, senderID int64) (*DialogState, error) {
	raw, err := s.backend.GetState(ctx, stateKey(senderID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var state DialogState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisStateStore) Set(ctx context.Context, senderID int64, state *DialogState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.backend.SetState(ctx, stateKey(senderID), raw, s.ttl)
}

func (s *RedisStateStore) Clear(ctx context.Context, senderID int64) error {
	return s.backend.ClearState(ctx, stateKey(senderID))
}

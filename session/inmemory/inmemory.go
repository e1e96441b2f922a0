package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webscout-ai/webscout/models"
	"github.com/webscout-ai/webscout/session"
)

// Store keeps sessions in process memory. Expired sessions are dropped
// lazily on the next lookup.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sess
}

type sess struct {
	store     *Store
	id        string
	messages  []models.Message
	expiresAt time.Time
}

func NewSessionStore() *Store {
	return &Store{sessions: make(map[string]*sess)}
}

func (st *Store) EnsureSession(_ context.Context, id string, ttl time.Duration) (session.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id != "" {
		if s, ok := st.sessions[id]; ok {
			if time.Now().Before(s.expiresAt) {
				s.expiresAt = time.Now().Add(ttl)
				return s, nil
			}
			delete(st.sessions, id)
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	s := &sess{store: st, id: id, expiresAt: time.Now().Add(ttl)}
	st.sessions[id] = s
	return s, nil
}

func (s *sess) ID() string { return s.id }

func (s *sess) History(context.Context) ([]models.Message, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *sess) Append(_ context.Context, msgs ...models.Message) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.messages = append(s.messages, msgs...)
	return nil
}

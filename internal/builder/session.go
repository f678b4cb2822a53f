package builder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/types"
)

// Session holds one in-progress builder draft.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu sync.Mutex
	// templateID is set when the draft edits a saved template.
	templateID   string
	lastActiveAt time.Time
	draft        *Draft
}

// View is a point-in-time copy of a session.
type View struct {
	ID           string         `json:"id"`
	TemplateID   string         `json:"templateId,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastActiveAt time.Time      `json:"lastActiveAt"`
	Template     types.Template `json:"template"`
	Problems     []Problem      `json:"problems"`
}

func newSession(d *Draft, templateID string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		templateID:   templateID,
		lastActiveAt: now,
		draft:        d,
	}
}

// Do runs fn with exclusive access to the draft and touches the session.
func (s *Session) Do(fn func(d *Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
	return fn(s.draft)
}

// Template returns a copy of the draft template.
func (s *Session) Template() types.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Template()
}

// TemplateID returns the id of the saved template being edited, if any.
func (s *Session) TemplateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templateID
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	problems := s.draft.Validate()
	if problems == nil {
		problems = []Problem{}
	}
	return View{
		ID:           s.ID,
		TemplateID:   s.templateID,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.lastActiveAt,
		Template:     s.draft.Template(),
		Problems:     problems,
	}
}

// Saved rebases the session on the template the API stored. Later saves
// update it, and its field names stay fixed from now on.
func (s *Session) Saved(tpl types.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templateID = tpl.ID
	s.lastActiveAt = time.Now()
	s.draft = EditDraft(tpl)
}

func (s *Session) expired(now time.Time, maxAge, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.CreatedAt) > maxAge || now.Sub(s.lastActiveAt) > idle
}

// Manager handles builder session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
	logger      *zap.Logger
}

// NewManager creates a session manager with the given timeouts.
func NewManager(maxAge, idleTimeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Create registers a session around d. templateID is empty for new
// templates.
func (m *Manager) Create(d *Draft, templateID string) *Session {
	s := newSession(d, templateID)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID. Returns nil if not found or expired.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.expired(time.Now(), m.maxAge, m.idleTimeout) {
		m.Remove(id)
		return nil
	}
	return s
}

// Remove deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions and returns how many went.
func (m *Manager) Cleanup() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.expired(now, m.maxAge, m.idleTimeout) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := m.Cleanup(); n > 0 {
				m.logger.Debug("builder sessions expired", zap.Int("count", n))
			}
		}
	}
}

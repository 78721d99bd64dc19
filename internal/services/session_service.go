// internal/services/session_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/SceneNovel/internal/errors"
	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/story"
	"github.com/Corphon/SceneNovel/internal/utils"
)

// EffectDispatcher receives the side effects of a session whenever its current
// scene changes. Implementations must not block.
type EffectDispatcher interface {
	DispatchEffects(sessionID string, fx models.SideEffects)
}

// SessionCloser is implemented by dispatchers that hold per-session
// connections; it is called once a session is deleted or evicted.
type SessionCloser interface {
	CloseSession(sessionID string)
}

// Session is one player walking one story graph. LastUsed is guarded by the
// service mutex, nav by the session lock.
type Session struct {
	ID        string
	CreatedAt time.Time
	LastUsed  time.Time
	nav       *story.Navigator
}

// SessionInfo is the listing view of a session.
type SessionInfo struct {
	ID         string    `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsed   time.Time `json:"last_used"`
	SceneIndex int       `json:"scene_index"`
	SceneCount int       `json:"scene_count"`
}

// SessionOptions configures a SessionService.
type SessionOptions struct {
	TTL         time.Duration // idle time before eviction; 0 disables it
	MaxSessions int           // 0 means unlimited
}

// SessionService owns every live Navigator. Each navigator is only touched under
// its session lock.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	graph    *story.Graph

	locks      *LockManager
	dispatcher EffectDispatcher
	opts       SessionOptions

	metrics *utils.MetricsCollector
	logger  *utils.Logger
	now     func() time.Time
}

// NewSessionService creates a service serving graph to new sessions.
func NewSessionService(graph *story.Graph, opts SessionOptions) *SessionService {
	return &SessionService{
		sessions: make(map[string]*Session),
		graph:    graph,
		locks:    NewLockManager(),
		opts:     opts,
		metrics:  utils.GetMetricsCollector(),
		logger:   utils.GetLogger(),
		now:      time.Now,
	}
}

// SetDispatcher installs the effect dispatcher; nil disables dispatch.
func (s *SessionService) SetDispatcher(d EffectDispatcher) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

// SetGraph swaps the graph used for sessions created from now on. Running
// sessions keep the graph they started with.
func (s *SessionService) SetGraph(g *story.Graph) {
	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()
	s.logger.Info("story graph replaced", map[string]interface{}{"scenes": g.Len()})
}

// Graph returns the graph handed to new sessions.
func (s *SessionService) Graph() *story.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Create starts a session at scene 0 and dispatches that scene's effects.
func (s *SessionService) Create() (string, models.RenderDescriptor, error) {
	s.EvictExpired()

	s.mu.Lock()
	if s.opts.MaxSessions > 0 && len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		return "", models.RenderDescriptor{}, apperrors.NewConflictError(
			fmt.Sprintf("session limit %d reached", s.opts.MaxSessions), nil)
	}
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		LastUsed:  now,
		nav:       story.NewNavigator(s.graph),
	}
	s.sessions[sess.ID] = sess
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.IncrementCounter("sessions.created")
	s.metrics.SetGauge("sessions.active", int64(active))
	s.logger.Info("session created", map[string]interface{}{
		"session_id": sess.ID,
		"scenes":     sess.nav.Graph().Len(),
	})

	var render models.RenderDescriptor
	err := s.locks.ExecuteWithSessionLock(sess.ID, func() error {
		render = sess.nav.Current()
		s.dispatch(sess.ID, sess.nav.Effects())
		return nil
	})
	return sess.ID, render, err
}

// Current renders the session's current scene.
func (s *SessionService) Current(id string) (models.RenderDescriptor, error) {
	return s.navigate(id, "", func(nav *story.Navigator) (models.RenderDescriptor, bool) {
		return nav.Current(), false
	})
}

// Advance moves the session forward (direction > 0) or backward (< 0).
func (s *SessionService) Advance(id string, direction int) (models.RenderDescriptor, error) {
	return s.navigate(id, "navigator.advance", func(nav *story.Navigator) (models.RenderDescriptor, bool) {
		return nav.Advance(direction), false
	})
}

// SelectChoice follows a choice of the current scene. Following a choice
// dispatches the target's effects even when it points back at the same scene.
func (s *SessionService) SelectChoice(id string, index int) (models.RenderDescriptor, error) {
	return s.navigate(id, "navigator.choice", func(nav *story.Navigator) (models.RenderDescriptor, bool) {
		followed := index >= 0 && index < len(nav.Current().Choices)
		return nav.SelectChoice(index), followed
	})
}

// SubmitInput answers the current scene's input request.
func (s *SessionService) SubmitInput(id, value string) (models.RenderDescriptor, error) {
	return s.navigate(id, "navigator.input", func(nav *story.Navigator) (models.RenderDescriptor, bool) {
		return nav.SubmitInput(value), false
	})
}

// Effects returns the side effects of the session's current scene.
func (s *SessionService) Effects(id string) (models.SideEffects, error) {
	var fx models.SideEffects
	err := s.withSession(id, func(sess *Session) {
		fx = sess.nav.Effects()
	})
	return fx, err
}

// State returns a copy of the session's navigation state.
func (s *SessionService) State(id string) (story.State, error) {
	var st story.State
	err := s.withSession(id, func(sess *Session) {
		st = sess.nav.State()
	})
	return st, err
}

// Reset restarts the session with a fresh navigation state on the current graph.
func (s *SessionService) Reset(id string) (models.RenderDescriptor, error) {
	graph := s.Graph()
	var render models.RenderDescriptor
	err := s.withSession(id, func(sess *Session) {
		sess.nav = story.NewNavigator(graph)
		render = sess.nav.Current()
		s.dispatch(id, sess.nav.Effects())
	})
	if err == nil {
		s.logger.Info("session reset", map[string]interface{}{"session_id": id})
	}
	return render, err
}

// Delete ends a session.
func (s *SessionService) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return notFound(id)
	}
	delete(s.sessions, id)
	active := len(s.sessions)
	s.mu.Unlock()

	s.locks.Forget(id)
	s.closeSessions(id)
	s.metrics.SetGauge("sessions.active", int64(active))
	s.logger.Info("session deleted", map[string]interface{}{"session_id": id})
	return nil
}

// Exists reports whether id names a live session.
func (s *SessionService) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// Count is the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Info describes a session.
func (s *SessionService) Info(id string) (SessionInfo, error) {
	var info SessionInfo
	err := s.withSession(id, func(sess *Session) {
		info.SceneIndex = sess.nav.State().Index
		info.SceneCount = sess.nav.Graph().Len()
	})
	if err != nil {
		return info, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		info.ID = sess.ID
		info.CreatedAt = sess.CreatedAt
		info.LastUsed = sess.LastUsed
	}
	return info, nil
}

// EvictExpired removes sessions idle for longer than the TTL.
func (s *SessionService) EvictExpired() int {
	if s.opts.TTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.opts.TTL)

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.LastUsed.Before(cutoff) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	active := len(s.sessions)
	s.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	for _, id := range expired {
		s.locks.Forget(id)
	}
	s.closeSessions(expired...)
	s.metrics.AddCounter("sessions.evicted", int64(len(expired)))
	s.metrics.SetGauge("sessions.active", int64(active))
	s.logger.Info("sessions evicted", map[string]interface{}{
		"count":  len(expired),
		"active": active,
	})
	return len(expired)
}

// StartJanitor evicts expired sessions every interval until ctx is done.
func (s *SessionService) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.opts.TTL <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.EvictExpired()
				s.locks.CleanupUnused(s.opts.TTL)
			}
		}
	}()
}

// navigate runs op under the session lock and dispatches effects when the
// current scene changed or op reports that it followed a transition.
func (s *SessionService) navigate(id, metric string, op func(*story.Navigator) (models.RenderDescriptor, bool)) (models.RenderDescriptor, error) {
	var render models.RenderDescriptor
	err := s.withSession(id, func(sess *Session) {
		before := sess.nav.State().Index
		var followed bool
		render, followed = op(sess.nav)
		if followed || render.SceneIndex != before {
			s.dispatch(id, sess.nav.Effects())
		}
	})
	if err == nil && metric != "" {
		s.metrics.IncrementCounter(metric)
	}
	return render, err
}

func (s *SessionService) withSession(id string, fn func(*Session)) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.LastUsed = s.now()
	}
	s.mu.Unlock()
	if !ok {
		return notFound(id)
	}
	return s.locks.ExecuteWithSessionLock(id, func() error {
		fn(sess)
		return nil
	})
}

func (s *SessionService) closeSessions(ids ...string) {
	s.mu.RLock()
	closer, ok := s.dispatcher.(SessionCloser)
	s.mu.RUnlock()
	if !ok {
		return
	}
	for _, id := range ids {
		closer.CloseSession(id)
	}
}

func (s *SessionService) dispatch(id string, fx models.SideEffects) {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	if d == nil || fx.Empty() {
		return
	}
	d.DispatchEffects(id, fx)
}

func notFound(id string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", id), nil)
}

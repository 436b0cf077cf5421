package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cobaltlab/authd/instrumentation"
	"github.com/cobaltlab/authd/internal/util"
	"github.com/cobaltlab/authd/security"
	"github.com/cobaltlab/authd/storage"
)

// idLogLength is the number of characters to include when logging session
// ids, codes, and tokens. Enough uniqueness for debugging without leaking
// the credential itself.
const idLogLength = 8

// Store is an in-memory implementation of all storage interfaces.
type Store struct {
	mu sync.RWMutex

	sessions map[string]*storage.Session
	codes    map[string]*storage.Code
	tokens   map[string]*storage.Token

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for size gauges (lock-free access during metric collection)
	sessionsCountAtomic atomic.Int64
	codesCountAtomic    atomic.Int64
	tokensCountAtomic   atomic.Int64

	// Cleanup
	sweepInterval time.Duration
	stopSweep     chan struct{}
	logger        *slog.Logger
}

// Compile-time interface checks to ensure Store implements all storage interfaces
var (
	_ storage.SessionStore = (*Store)(nil)
	_ storage.CodeStore    = (*Store)(nil)
	_ storage.TokenStore   = (*Store)(nil)
)

// New creates a new in-memory store with the default sweep interval (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom sweep interval.
// If sweepInterval is 0 or negative, the default of 1 minute is used.
func NewWithInterval(sweepInterval time.Duration) *Store {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	s := &Store{
		sessions:      make(map[string]*storage.Session),
		codes:         make(map[string]*storage.Code),
		tokens:        make(map[string]*storage.Token),
		sweepInterval: sweepInterval,
		stopSweep:     make(chan struct{}),
		logger:        slog.Default(),
	}

	go s.sweepLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}

	s.sessionsCountAtomic.Store(int64(len(s.sessions)))
	s.codesCountAtomic.Store(int64(len(s.codes)))
	s.tokensCountAtomic.Store(int64(len(s.tokens)))
	s.mu.Unlock()

	if inst != nil {
		// Size gauges give visibility into unbounded growth: the store only
		// compacts via the sweep, so long-lived processes should watch these.
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.sessionsCountAtomic.Load() },
			func() int64 { return s.codesCountAtomic.Load() },
			func() int64 { return s.tokensCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop gracefully stops the sweep goroutine
func (s *Store) Stop() {
	close(s.stopSweep)
}

// ============================================================
// SessionStore Implementation
// ============================================================

// SaveSession stores a pending authorization session
func (s *Store) SaveSession(ctx context.Context, session *storage.Session) error {
	ctx, span := s.startStorageSpan(ctx, "save_session")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_session", err, startTime)
	}()

	if session == nil || session.ID == "" {
		err = fmt.Errorf("invalid authorization session")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.sessions[session.ID]
	s.sessions[session.ID] = session
	if !existed {
		s.sessionsCountAtomic.Add(1)
	}

	s.logger.Debug("Saved authorization session",
		"session_prefix", util.SafeTruncate(session.ID, idLogLength),
		"client_id", session.ClientID)
	return nil
}

// GetSession retrieves a session without consuming it
func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	ctx, span := s.startStorageSpan(ctx, "get_session")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_session", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		err = storage.ErrSessionNotFound
		return nil, err
	}

	if security.IsExpired(session.ExpiresAt) {
		err = storage.ErrSessionExpired
		return nil, err
	}

	// Return a copy so callers cannot mutate the stored record
	sessionCopy := *session
	return &sessionCopy, nil
}

// ConsumeSession atomically retrieves and deletes a session.
// Only one concurrent caller can succeed for a given id.
func (s *Store) ConsumeSession(ctx context.Context, id string) (*storage.Session, error) {
	ctx, span := s.startStorageSpan(ctx, "consume_session")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "consume_session", err, startTime)
	}()

	s.mu.Lock() // write lock for atomic get-and-delete
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		err = storage.ErrSessionNotFound
		return nil, err
	}

	if security.IsExpired(session.ExpiresAt) {
		// Expired sessions are deleted on consumption attempts too
		delete(s.sessions, id)
		s.sessionsCountAtomic.Add(-1)
		err = storage.ErrSessionExpired
		return nil, err
	}

	delete(s.sessions, id)
	s.sessionsCountAtomic.Add(-1)

	s.logger.Debug("Consumed authorization session",
		"session_prefix", util.SafeTruncate(id, idLogLength),
		"client_id", session.ClientID)

	return session, nil
}

// ============================================================
// CodeStore Implementation
// ============================================================

// SaveCode stores a freshly issued authorization code
func (s *Store) SaveCode(ctx context.Context, code *storage.Code) error {
	ctx, span := s.startStorageSpan(ctx, "save_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_code", err, startTime)
	}()

	if code == nil || code.Value == "" {
		err = fmt.Errorf("invalid authorization code")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.codes[code.Value]
	s.codes[code.Value] = code
	if !existed {
		s.codesCountAtomic.Add(1)
	}

	s.logger.Debug("Saved authorization code",
		"code_prefix", util.SafeTruncate(code.Value, idLogLength),
		"client_id", code.ClientID)
	return nil
}

// GetCode retrieves a code without consuming it.
// Expired codes behave as absent.
func (s *Store) GetCode(ctx context.Context, value string) (*storage.Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.codes[value]
	if !ok {
		return nil, storage.ErrCodeNotFound
	}

	if security.IsExpired(code.ExpiresAt) {
		return nil, storage.ErrCodeExpired
	}

	codeCopy := *code
	return &codeCopy, nil
}

// RedeemCode atomically validates and consumes an authorization code.
// The checks run in protocol order under the write lock: existence, client
// binding, consumption, expiry, redirect binding. The code is marked
// consumed only when every check passes, so only ONE concurrent token
// request can succeed for a given code.
func (s *Store) RedeemCode(ctx context.Context, value, clientID, redirectURI string) (*storage.Code, error) {
	ctx, span := s.startStorageSpan(ctx, "redeem_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "redeem_code", err, startTime)
	}()

	s.mu.Lock() // write lock for atomic check-and-consume
	defer s.mu.Unlock()

	code, ok := s.codes[value]
	if !ok {
		err = storage.ErrCodeNotFound
		return nil, err
	}

	if code.ClientID != clientID {
		err = storage.ErrCodeClientMismatch
		return nil, err
	}

	if code.Consumed {
		// Replay: return the stored code so the caller can log the
		// original binding of the replayed code.
		err = storage.ErrCodeConsumed
		codeCopy := *code
		return &codeCopy, err
	}

	if security.IsExpired(code.ExpiresAt) {
		err = storage.ErrCodeExpired
		return nil, err
	}

	if code.RedirectURI != redirectURI {
		err = storage.ErrCodeRedirectMismatch
		return nil, err
	}

	// Mark consumed atomically; the code is kept (not deleted) so a second
	// redemption attempt is distinguishable as a replay.
	code.Consumed = true

	s.logger.Debug("Redeemed authorization code",
		"code_prefix", util.SafeTruncate(value, idLogLength),
		"client_id", clientID)

	codeCopy := *code
	return &codeCopy, nil
}

// ============================================================
// TokenStore Implementation
// ============================================================

// SaveToken stores an issued access token
func (s *Store) SaveToken(ctx context.Context, token *storage.Token) error {
	ctx, span := s.startStorageSpan(ctx, "save_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_token", err, startTime)
	}()

	if token == nil || token.Value == "" {
		err = fmt.Errorf("invalid access token")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.tokens[token.Value]
	s.tokens[token.Value] = token
	if !existed {
		s.tokensCountAtomic.Add(1)
	}

	s.logger.Debug("Saved access token",
		"token_prefix", util.SafeTruncate(token.Value, idLogLength),
		"client_id", token.ClientID)
	return nil
}

// GetToken retrieves an access token. Expired tokens behave as absent;
// there is no active eviction beyond the background sweep.
func (s *Store) GetToken(ctx context.Context, value string) (*storage.Token, error) {
	ctx, span := s.startStorageSpan(ctx, "get_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_token", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[value]
	if !ok {
		err = storage.ErrTokenNotFound
		return nil, err
	}

	if security.IsExpired(token.ExpiresAt()) {
		err = storage.ErrTokenExpired
		return nil, err
	}

	tokenCopy := *token
	return &tokenCopy, nil
}

// ============================================================
// Sweep
// ============================================================

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep compacts expired entries. Correctness does not depend on it:
// every read path re-checks expiry from timestamps.
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0

	for id, session := range s.sessions {
		if security.IsExpired(session.ExpiresAt) {
			delete(s.sessions, id)
			s.sessionsCountAtomic.Add(-1)
			cleaned++
		}
	}

	for value, code := range s.codes {
		if security.IsExpired(code.ExpiresAt) {
			delete(s.codes, value)
			s.codesCountAtomic.Add(-1)
			cleaned++
		}
	}

	for value, token := range s.tokens {
		if security.IsExpired(token.ExpiresAt()) {
			delete(s.tokens, value)
			s.tokensCountAtomic.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Swept expired entries", "count", cleaned)
	}
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startStorageSpan starts a new span for a storage operation.
// Returns a context with the span attached and the span itself.
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		if span != nil {
			span.SetStatus(codes.Ok, "")
		}
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}

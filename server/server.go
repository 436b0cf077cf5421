package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/cobaltlab/authd/instrumentation"
	"github.com/cobaltlab/authd/registry"
	"github.com/cobaltlab/authd/security"
	"github.com/cobaltlab/authd/storage"
)

// idLogLength limits how much of a session id, code, or token reaches logs.
const idLogLength = 8

// Server drives the authorization code grant state machine. It ties the
// request validators, the client registry, the resource-owner directory,
// and the volatile state stores together; it holds no protocol state of
// its own.
type Server struct {
	registry  *registry.Registry
	directory *registry.Directory

	sessions storage.SessionStore
	codes    storage.CodeStore
	tokens   storage.TokenStore

	Auditor          *security.Auditor
	LoginRateLimiter *security.RateLimiter // per-IP login attempt limiter
	Logger           *slog.Logger
	Config           *Config

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
}

// New creates a new authorization server
func New(
	reg *registry.Registry,
	dir *registry.Directory,
	sessions storage.SessionStore,
	codes storage.CodeStore,
	tokens storage.TokenStore,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("client registry is required")
	}
	if dir == nil {
		return nil, fmt.Errorf("resource-owner directory is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if codes == nil {
		return nil, fmt.Errorf("code store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applyDefaults(config, logger)

	srv := &Server{
		registry:  reg,
		directory: dir,
		sessions:  sessions,
		codes:     codes,
		tokens:    tokens,
		Config:    config,
		Logger:    logger,
		Auditor:   security.NewAuditor(logger, config.AuditEnabled),
	}

	return srv, nil
}

// SetAuditor replaces the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetLoginRateLimiter sets the per-IP login attempt limiter
func (s *Server) SetLoginRateLimiter(rl *security.RateLimiter) {
	s.LoginRateLimiter = rl
}

// SetInstrumentation sets OpenTelemetry instrumentation for the server
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("server")
	}
}

// Instrumentation returns the server's OpenTelemetry instrumentation, or
// nil when none was set.
func (s *Server) Instrumentation() *instrumentation.Instrumentation {
	return s.instrumentation
}

// startFlowSpan starts a span for a grant flow operation
func (s *Server) startFlowSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, "oauth.server."+operation)
}

// metrics returns the metrics holder, or nil when instrumentation is unset
func (s *Server) metrics() *instrumentation.Metrics {
	if s.instrumentation == nil {
		return nil
	}
	return s.instrumentation.Metrics()
}

// generateAuthorizationCode mints a 32-character hex code from 128 bits of
// entropy. Panics if the system RNG fails.
func generateAuthorizationCode() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// generateAccessToken mints a 43-character base64url token carrying 256
// bits of entropy.
func generateAccessToken() string {
	return oauth2.GenerateVerifier()
}

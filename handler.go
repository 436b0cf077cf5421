package authd

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/cobaltlab/authd/security"
	"github.com/cobaltlab/authd/server"
)

// Endpoint paths registered by RegisterRoutes.
const (
	PathAuthorize     = "/oauth/authorize"
	PathLogin         = "/login/authenticate"
	PathToken         = "/oauth/token"
	PathIntrospection = "/oauth/introspect"
)

// loginPageTemplate is the HTML served to the resource owner after a valid
// authorization request. The form posts back to the login endpoint with the
// pending session id; it carries no client-controlled markup.
const loginPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sign in</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: #f4f5f7;
            display: flex;
            align-items: center;
            justify-content: center;
            min-height: 100vh;
            margin: 0;
        }
        .card {
            background: #fff;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0, 0, 0, 0.1);
            padding: 2rem;
            width: 320px;
        }
        h1 {
            font-size: 1.25rem;
            margin: 0 0 0.5rem;
        }
        p.client {
            color: #555;
            font-size: 0.875rem;
            margin: 0 0 1.5rem;
        }
        label {
            display: block;
            font-size: 0.875rem;
            margin-bottom: 0.25rem;
        }
        input[type="text"], input[type="password"] {
            width: 100%;
            box-sizing: border-box;
            padding: 0.5rem;
            margin-bottom: 1rem;
            border: 1px solid #ccc;
            border-radius: 4px;
        }
        button {
            width: 100%;
            padding: 0.6rem;
            border: none;
            border-radius: 4px;
            background: #2563eb;
            color: #fff;
            font-size: 1rem;
            cursor: pointer;
        }
    </style>
</head>
<body>
    <div class="card">
        <h1>Sign in</h1>
        <p class="client">Continue to {{.ClientID}}</p>
        <form method="POST" action="{{.Action}}">
            <input type="hidden" name="session_id" value="{{.SessionID}}">
            <label for="username">Username</label>
            <input type="text" id="username" name="username" autocomplete="username" autofocus>
            <label for="password">Password</label>
            <input type="password" id="password" name="password" autocomplete="current-password">
            <button type="submit">Sign in</button>
        </form>
    </div>
</body>
</html>
`

// loginPageData feeds loginPageTemplate.
type loginPageData struct {
	SessionID string
	ClientID  string
	Action    string
}

// Handler is the HTTP adapter over the authorization server. It owns the
// wire formats and status codes; all grant semantics live in the server.
type Handler struct {
	server    *server.Server
	logger    *slog.Logger
	tracer    trace.Tracer
	loginTmpl *template.Template
}

// NewHandler creates an HTTP handler for the given authorization server
func NewHandler(srv *server.Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server:    srv,
		logger:    logger,
		loginTmpl: template.Must(template.New("login").Parse(loginPageTemplate)),
	}

	if srv.Instrumentation() != nil {
		h.tracer = srv.Instrumentation().Tracer("http")
	}

	return h
}

// RegisterRoutes registers all four endpoints on the mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(PathAuthorize, h.ServeAuthorization)
	mux.HandleFunc(PathLogin, h.ServeLogin)
	mux.HandleFunc(PathToken, h.ServeToken)
	mux.HandleFunc(PathIntrospection, h.ServeIntrospection)
}

// Routes returns a mux with the endpoints registered and request id
// propagation applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return security.RequestIDMiddleware(mux)
}

// ServeAuthorization handles GET /oauth/authorize. A valid request opens a
// pending session and serves the login page; failures before the redirect
// URI is verified answer with a plain 400, failures after it redirect back
// to the client with error parameters.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.startSpan(r, "oauth.http.authorization")
	defer span.End()

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics("authorization", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := h.server.StartAuthorization(ctx, r.URL.Query(), h.clientIP(r))
	if err != nil {
		var reqErr *server.RequestError
		if errors.As(err, &reqErr) {
			h.recordHTTPMetrics("authorization", r.Method, http.StatusBadRequest, startTime)
			http.Error(w, reqErr.Message, http.StatusBadRequest)
			return
		}
		var redirErr *server.RedirectError
		if errors.As(err, &redirErr) {
			h.recordHTTPMetrics("authorization", r.Method, http.StatusFound, startTime)
			http.Redirect(w, r, redirErr.Location(), http.StatusFound)
			return
		}
		h.logger.Error("Authorization request failed", "error", err)
		h.recordHTTPMetrics("authorization", r.Method, http.StatusInternalServerError, startTime)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	security.SetLoginPageHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.loginTmpl.Execute(w, loginPageData{
		SessionID: session.ID,
		ClientID:  session.ClientID,
		Action:    PathLogin,
	}); err != nil {
		h.logger.Error("Failed to render login page", "error", err)
	}
	h.recordHTTPMetrics("authorization", r.Method, http.StatusOK, startTime)
}

// ServeLogin handles POST /login/authenticate. On success the resource
// owner is redirected back to the client with a fresh authorization code.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.startSpan(r, "oauth.http.login")
	defer span.End()

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("login", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.recordHTTPMetrics("login", r.Method, http.StatusBadRequest, startTime)
		http.Error(w, "Malformed form body", http.StatusBadRequest)
		return
	}

	redirect, err := h.server.AuthenticateOwner(ctx,
		r.PostForm.Get("session_id"),
		r.PostForm.Get("username"),
		r.PostForm.Get("password"),
		h.clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, server.ErrRateLimited):
			h.recordHTTPMetrics("login", r.Method, http.StatusTooManyRequests, startTime)
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		case errors.Is(err, server.ErrInvalidSession):
			h.recordHTTPMetrics("login", r.Method, http.StatusBadRequest, startTime)
			http.Error(w, "Invalid session", http.StatusBadRequest)
		case errors.Is(err, server.ErrInvalidCredentials):
			h.recordHTTPMetrics("login", r.Method, http.StatusUnauthorized, startTime)
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		default:
			h.logger.Error("Login failed", "error", err)
			h.recordHTTPMetrics("login", r.Method, http.StatusInternalServerError, startTime)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.recordHTTPMetrics("login", r.Method, http.StatusFound, startTime)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// ServeToken handles POST /oauth/token, the code-for-token exchange.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.startSpan(r, "oauth.http.token")
	defer span.End()

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("token", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.recordHTTPMetrics("token", r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, &server.Error{
			Code:        server.ErrorInvalidRequest,
			Description: "Malformed form body",
			Status:      http.StatusBadRequest,
		})
		return
	}

	token, oerr := h.server.ExchangeAuthorizationCode(ctx,
		r.Header.Get("Authorization"), r.PostForm, h.clientIP(r))
	if oerr != nil {
		h.recordHTTPMetrics("token", r.Method, oerr.Status, startTime)
		h.writeError(w, oerr)
		return
	}

	h.recordHTTPMetrics("token", r.Method, http.StatusOK, startTime)
	h.writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token.Value,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
	})
}

// ServeIntrospection handles POST /oauth/introspect. Only system clients
// get an answer; everyone else receives invalid_client.
func (h *Handler) ServeIntrospection(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.startSpan(r, "oauth.http.introspection")
	defer span.End()

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("introspection", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.recordHTTPMetrics("introspection", r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, &server.Error{
			Code:        server.ErrorInvalidRequest,
			Description: "Malformed form body",
			Status:      http.StatusBadRequest,
		})
		return
	}

	result, oerr := h.server.IntrospectToken(ctx,
		r.Header.Get("Authorization"), r.PostForm, h.clientIP(r))
	if oerr != nil {
		h.recordHTTPMetrics("introspection", r.Method, oerr.Status, startTime)
		h.writeError(w, oerr)
		return
	}

	h.recordHTTPMetrics("introspection", r.Method, http.StatusOK, startTime)
	h.writeJSON(w, http.StatusOK, IntrospectionResponse{
		Active:    result.Active,
		ClientID:  result.ClientID,
		IssuedAt:  result.IssuedAt,
		ExpiresAt: result.ExpiresAt,
	})
}

// writeError writes a protocol error as a JSON body, emitting the
// WWW-Authenticate header when the error calls for one.
func (h *Handler) writeError(w http.ResponseWriter, e *server.Error) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	if e.WWWAuthenticate != "" {
		w.Header().Set("WWW-Authenticate", e.WWWAuthenticate)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// writeJSON writes a success body. Token and introspection responses must
// never be cached (RFC 6749 §5.1).
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// startSpan starts an HTTP-layer span when tracing is enabled
func (h *Handler) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	ctx := r.Context()
	if h.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return h.tracer.Start(ctx, name)
}

func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.Config.TrustProxy, h.server.Config.TrustedProxyCount)
}

func (h *Handler) recordHTTPMetrics(endpoint, method string, status int, startTime time.Time) {
	inst := h.server.Instrumentation()
	if inst == nil {
		return
	}
	durationMs := time.Since(startTime).Seconds() * 1000
	inst.Metrics().RecordHTTPRequest(context.Background(), method, endpoint, status, durationMs)
}

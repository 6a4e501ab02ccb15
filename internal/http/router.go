package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolkov/mailhub/internal/domain"
	"github.com/avolkov/mailhub/internal/repository"
	"github.com/avolkov/mailhub/internal/service/auth"
	"github.com/avolkov/mailhub/internal/service/mailbox"
	"github.com/avolkov/mailhub/internal/service/order"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	mailbox  mailbox.Service
	order    order.Service
	limiter  RateLimiter
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, mailboxSvc mailbox.Service, orderSvc order.Service, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		mailbox:  mailboxSvc,
		order:    orderSvc,
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/signup", r.audit(r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit(r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/users", r.audit(r.handlerAuthRate("/users", rateLimitUserRead, rateWindowDefault, r.handleUserSearch)))
	r.mux.HandleFunc("/users/", r.audit(r.handlerAuthRate("/users/", rateLimitUserRead, rateWindowDefault, r.handleUserByUsername)))
	r.mux.HandleFunc("/folders", r.audit(r.handlerAuthRate("/folders", rateLimitUserWrite, rateWindowDefault, r.handleFolders)))
	r.mux.HandleFunc("/folders/", r.audit(r.handlerAuthRate("/folders/", rateLimitUserWrite, rateWindowDefault, r.handleFolderSubroutes)))
	r.mux.HandleFunc("/messages/", r.audit(r.handlerAuthRate("/messages/", rateLimitUserRead, rateWindowDefault, r.handleMessage)))
	r.mux.HandleFunc("/orders", r.audit(r.handlerAuthRate("/orders", rateLimitUserWrite, rateWindowDefault, r.handleOrders)))
	r.mux.HandleFunc("/orders/", r.audit(r.handlerAuthRate("/orders/", rateLimitUserRead, rateWindowDefault, r.handleOrderByNumber)))
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload auth.RegisterInput
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := r.auth.Register(req.Context(), payload)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := r.auth.Login(req.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		r.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"expires_in":   int(token.ExpiresIn.Seconds()),
	})
}

func (r *Router) handleUserSearch(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	firstName := req.URL.Query().Get("first_name")
	lastName := req.URL.Query().Get("last_name")
	users, err := r.auth.Search(req.Context(), firstName, lastName)
	if err != nil {
		r.logger.Error("user search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (r *Router) handleUserByUsername(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	username := strings.TrimPrefix(req.URL.Path, "/users/")
	if username == "" || strings.Contains(username, "/") {
		r.notFound(w)
		return
	}
	user, err := r.auth.GetByUsername(req.Context(), username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.notFound(w)
			return
		}
		r.logger.Error("user lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (r *Router) handleFolders(w http.ResponseWriter, req *http.Request) {
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		folders, err := r.mailbox.ListFolders(req.Context(), info.UserID)
		if err != nil {
			r.logger.Error("folder listing failed", "error", err)
			writeError(w, http.StatusInternalServerError, "listing failed")
			return
		}
		if folders == nil {
			folders = []domain.Folder{}
		}
		writeJSON(w, http.StatusOK, folders)
	case http.MethodPost:
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		folder, err := r.mailbox.CreateFolder(req.Context(), info.UserID, payload.Name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, folder)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleFolderSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/folders/")
	parts := strings.Split(trimmed, "/")
	folderID := parts[0]
	if folderID == "" {
		r.notFound(w)
		return
	}
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	if len(parts) == 1 {
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		folder, err := r.mailbox.GetFolder(req.Context(), info.UserID, folderID)
		if err != nil {
			r.respondMailboxError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, folder)
		return
	}
	if len(parts) == 2 && parts[1] == "messages" {
		r.handleFolderMessages(w, req, info, folderID)
		return
	}
	r.notFound(w)
}

func (r *Router) handleFolderMessages(w http.ResponseWriter, req *http.Request, info authInfo, folderID string) {
	switch req.Method {
	case http.MethodGet:
		messages, err := r.mailbox.ListMessages(req.Context(), info.UserID, folderID)
		if err != nil {
			r.respondMailboxError(w, err)
			return
		}
		if messages == nil {
			messages = []domain.Message{}
		}
		writeJSON(w, http.StatusOK, messages)
	case http.MethodPost:
		var payload mailbox.CreateMessageInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		// the folder reference comes from the path, never the payload
		payload.FolderID = folderID
		message, err := r.mailbox.CreateMessage(req.Context(), info.UserID, payload)
		if err != nil {
			r.respondMailboxError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, message)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleMessage(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	messageID := strings.TrimPrefix(req.URL.Path, "/messages/")
	if messageID == "" || strings.Contains(messageID, "/") {
		r.notFound(w)
		return
	}
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	message, err := r.mailbox.GetMessage(req.Context(), info.UserID, messageID)
	if err != nil {
		r.respondMailboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (r *Router) handleOrders(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload order.CreateInput
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := r.order.Create(req.Context(), payload)
	if err != nil {
		if errors.Is(err, order.ErrDuplicateOrderNumber) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (r *Router) handleOrderByNumber(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	raw := strings.TrimPrefix(req.URL.Path, "/orders/")
	number, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order number")
		return
	}
	found, err := r.order.Get(req.Context(), number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.notFound(w)
			return
		}
		r.logger.Error("order lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// callerInfo fetches the auth info that requireAuth placed in the context.
func (r *Router) callerInfo(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return authInfo{}, false
	}
	return info, true
}

// respondMailboxError maps mailbox service failures to HTTP statuses. A
// non-owned resource deliberately reads as not found.
func (r *Router) respondMailboxError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mailbox.ErrInvalidFolderReference):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		r.notFound(w)
	default:
		r.logger.Error("mailbox operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "operation failed")
	}
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

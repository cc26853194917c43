package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/service"
	"github.com/opsdeck/opsdeck/internal/panel/store"
	"github.com/opsdeck/opsdeck/pkg/httpx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	AuthService    *service.AuthService
	InviteService  *service.InviteService
	UserService    *service.UserService
	ProjectService *service.ProjectService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerInvites()
	r.registerUsers()
	r.registerProjects()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /api/auth/login - strict rate limit by IP (authentication attempts)
	loginHandler := &LoginHandler{AuthService: r.AuthService}
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /api/auth/me - authenticated, lenient rate limit by user
	usersHandler := &UsersHandler{UserService: r.UserService}
	r.Mux.Handle("GET /api/auth/me",
		httpx.Chain(http.HandlerFunc(usersHandler.HandleMe),
			authn(r.AuthService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerInvites() {
	createHandler := &InviteCreateHandler{InviteService: r.InviteService}
	verifyHandler := &InviteVerifyHandler{InviteService: r.InviteService}
	registerHandler := &RegisterHandler{InviteService: r.InviteService, AuthService: r.AuthService}

	// POST /api/invites - moderate rate limit by user (admin operation)
	r.Mux.Handle("POST /api/invites",
		httpx.Chain(createHandler,
			authn(r.AuthService),
			requireRole(r.AuthService, domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// GET /api/invites/verify - public pre-registration check, moderate by IP
	r.Mux.Handle("GET /api/invites/verify",
		httpx.Chain(verifyHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /api/auth/register - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	admin := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			authn(r.AuthService),
			requireRole(r.AuthService, domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /api/users", admin(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("GET /api/users/{id}", admin(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("PATCH /api/users/{id}/role", admin(http.HandlerFunc(h.HandleUpdateRole)))
	r.Mux.Handle("PATCH /api/users/{id}/status", admin(http.HandlerFunc(h.HandleUpdateStatus)))
}

func (r *Router) registerProjects() {
	h := &ProjectsHandler{ProjectService: r.ProjectService}

	// Reads are open to every authenticated role.
	authed := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			authn(r.AuthService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		)
	}

	// Writes need MANAGER or better; deletion stays admin only.
	managed := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			authn(r.AuthService),
			requireRole(r.AuthService, domain.RoleAdmin, domain.RoleManager),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}
	adminOnly := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			authn(r.AuthService),
			requireRole(r.AuthService, domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /api/projects", authed(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("GET /api/projects/{id}", authed(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("POST /api/projects", managed(http.HandlerFunc(h.HandleCreate)))
	r.Mux.Handle("PUT /api/projects/{id}", managed(http.HandlerFunc(h.HandleUpdate)))
	r.Mux.Handle("DELETE /api/projects/{id}", adminOnly(http.HandlerFunc(h.HandleDelete)))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

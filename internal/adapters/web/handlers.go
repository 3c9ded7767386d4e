package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"finledger/internal/app"
	"finledger/internal/metrics"
)

// Options configures NewHandler.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	AuthDisabled   bool
	DefaultTenant  string
	Logger         *zap.Logger
	// Metrics, when set, instruments every route and serves /metrics.
	Metrics *metrics.Metrics
}

// Handler holds the ApplicationService and the request plumbing shared by routes.
type Handler struct {
	svc           app.ApplicationService
	log           *zap.Logger
	validate      *validator.Validate
	jwtSecret     string
	authDisabled  bool
	defaultTenant string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:           svc,
		log:           logger.Named("web"),
		validate:      newValidator(),
		jwtSecret:     opts.JWTSecret,
		authDisabled:  opts.AuthDisabled,
		defaultTenant: opts.DefaultTenant,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	if opts.Metrics != nil {
		r.Use(Instrument(opts.Metrics))
	}
	r.Use(CORS(opts.AllowedOrigins))

	// ── Public ───────────────────────────────────────────────────────────────
	r.Get("/health", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	// ── Protected API routes (401 JSON if unauthenticated) ──────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.listAccounts)
			r.Get("/{code}", h.getAccount)
			r.Get("/{code}/children", h.listChildren)
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(RoleAdmin))
				r.Post("/", h.createAccount)
				r.Post("/seed", h.seedChart)
				r.Patch("/{code}", h.updateAccount)
				r.Delete("/{code}", h.deleteAccount)
			})
		})

		r.Route("/journal", func(r chi.Router) {
			r.Get("/entries/schema", h.entrySchema)
			r.Post("/entries", h.postEntry)
			r.Get("/entries", h.listEntries)
			r.Get("/entries/{id}", h.getEntry)
			r.Post("/entries/{id}/reverse", h.reverseEntry)
			r.Post("/templates", h.postTemplate)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/items", h.registerItem)
			r.Get("/items", h.listItems)
			r.Get("/items/{id}", h.getItem)
			r.Post("/items/{id}/deactivate", h.deactivateItem)
			r.Get("/items/{id}/movements", h.listItemMovements)
			r.Post("/movements", h.recordMovement)
			r.Get("/movements", h.listMovements)
			r.Get("/valuation", h.valuation)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", h.trialBalance)
			r.Get("/profit-loss", h.profitAndLoss)
			r.Get("/balance-sheet", h.balanceSheet)
			r.Get("/cogs", h.cogs)
			r.Get("/accounts/{code}/statement", h.accountStatement)
		})
	})

	return r
}

// health returns service status; 503 when the store is unreachable.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	if err := h.svc.Health(r.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, response{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// idParam parses the {id} URL parameter, writing 400 when it is not a positive integer.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "id must be a positive integer", Code: "BAD_REQUEST"})
		return 0, false
	}
	return id, true
}

func requestIDField(r *http.Request) zap.Field {
	return zap.String("request_id", requestIDFromContext(r.Context()))
}

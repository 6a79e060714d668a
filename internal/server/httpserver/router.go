package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/chunkmeta-go/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	// Engine is the storage engine.
	Engine handler.Engine

	// Metrics serves MetricsPath. Nil disables the endpoint.
	Metrics     http.Handler
	MetricsPath string

	// AdminAllowList is the IP/CIDR allowlist for /admin/v1 (empty = no
	// restriction).
	AdminAllowList []string

	// Logger for request logging.
	Logger *slog.Logger
}

// NewRouter creates the admin router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := handler.New(cfg.Engine, log)
	common := []Middleware{RequestID(log), Recover()}

	mux := http.NewServeMux()

	health := Chain(h, common...)
	mux.Handle("GET /healthz", health)
	mux.Handle("GET /readyz", health)

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, Chain(cfg.Metrics, common...))
	}

	admin := Chain(h, append(common, Audit(), NetworkACL(cfg.AdminAllowList, log))...)
	mux.Handle("/admin/v1/", admin)

	return mux
}

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

const defaultMaxRequestSize = 1 << 20

// httpRuntime serves the request envelope on POST / next to health and
// Prometheus endpoints
type httpRuntime struct {
	handler ports.Handler
	logger  ports.Logger
	metrics ports.Metrics
	config  *config.HTTPConfig

	mu     sync.Mutex
	server *http.Server
}

func NewHTTPRuntime(cfg *config.HTTPConfig, handler ports.Handler, obs ports.Observability) (ports.Runtime, error) {
	if handler == nil {
		return nil, errors.New("failed to create runtime: handler is required")
	}

	logger, metrics, err := obs.ComponentsScoped("runtime.http")
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	rt := &httpRuntime{
		handler: handler,
		logger:  logger,
		metrics: metrics,
		config:  cfg,
	}
	rt.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           rt.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout + 5*time.Second,
	}
	return rt, nil
}

func (rt *httpRuntime) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", rt.handleRequest)
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves until Shutdown is called
func (rt *httpRuntime) Start() error {
	rt.mu.Lock()
	server := rt.server
	rt.mu.Unlock()

	rt.logger.Info("Starting HTTP runtime", "address", rt.config.Addr)
	rt.metrics.IncrementCounter("http.starts", nil)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (rt *httpRuntime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.logger.Info("Shutting down HTTP runtime")
	return rt.server.Shutdown(ctx)
}

func (rt *httpRuntime) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rt.methodNotAllowed(w, r, "GET, HEAD")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, `{"status":"ok"}`)
}

func (rt *httpRuntime) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		rt.methodNotAllowed(w, r, http.MethodPost)
		return
	}

	start := time.Now()
	rt.metrics.IncrementCounter("http.requests", nil)
	defer func() {
		rt.metrics.RecordHistogram("http.request_duration", time.Since(start).Seconds(), nil)
	}()

	limit := rt.config.MaxRequestSize
	if limit <= 0 {
		limit = defaultMaxRequestSize
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.reject(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		rt.reject(w, http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err))
		return
	}

	var req ports.RuntimeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rt.reject(w, http.StatusBadRequest, fmt.Errorf("invalid JSON payload: %w", err))
		return
	}
	if req.Type == "" {
		rt.reject(w, http.StatusBadRequest, errMissingType)
		return
	}

	if req.ID == "" {
		req.ID = r.Header.Get("X-Request-ID")
	}
	fillDefaults(&req, "http")
	req.Metadata["http_remote_addr"] = r.RemoteAddr
	if ua := r.Header.Get("User-Agent"); ua != "" {
		req.Metadata["http_user_agent"] = ua
	}

	ctx := r.Context()
	if rt.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.config.Timeout)
		defer cancel()
	}

	resp, err := rt.handler.Handle(ctx, req)
	w.Header().Set("X-Request-ID", req.ID)

	switch {
	case err != nil:
		rt.logger.Error("Request processing failed", "request_id", req.ID, "error", err)
		rt.writeJSON(w, http.StatusInternalServerError, ports.RuntimeResponse{Success: false, Error: err.Error()})
	case !resp.Success:
		rt.writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		rt.writeJSON(w, http.StatusOK, resp)
	}
}

func (rt *httpRuntime) methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	rt.logger.Info("Method not allowed", "method", r.Method, "path", r.URL.Path)
	rt.metrics.IncrementCounter("http.method_not_allowed", nil)
	w.Header().Set("Allow", allow)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func (rt *httpRuntime) reject(w http.ResponseWriter, status int, err error) {
	rt.logger.Warn("Bad request", "status", status, "error", err)
	rt.metrics.IncrementCounter("http.bad_request", nil)
	rt.writeJSON(w, status, ports.RuntimeResponse{Success: false, Error: err.Error()})
}

func (rt *httpRuntime) writeJSON(w http.ResponseWriter, status int, resp ports.RuntimeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		rt.logger.Error("Failed to encode response", "error", err)
	}
}

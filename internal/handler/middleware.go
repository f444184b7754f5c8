package handler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

type HandlerFunc func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error)

type Middleware func(next HandlerFunc) HandlerFunc

// RecoveryMiddleware turns a panic into an error so a runtime keeps serving
func RecoveryMiddleware(logger ports.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req ports.RuntimeRequest) (resp ports.RuntimeResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Handler panicked",
						"request_id", req.ID,
						"panic", fmt.Sprint(r),
						"stack", string(debug.Stack()))
					resp = ports.RuntimeResponse{Success: false, Error: "internal error"}
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MetricsMiddleware(metrics ports.Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			status := "success"
			if err != nil || !resp.Success {
				status = "failure"
			}
			tags := map[string]string{"type": req.Type, "status": status}
			metrics.IncrementCounter("handler.requests", tags)
			metrics.RecordHistogram("handler.duration", time.Since(start).Seconds(), tags)

			return resp, err
		}
	}
}

func LoggingMiddleware(logger ports.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
			logger.Info("Handling request", "request_id", req.ID, "type", req.Type, "source", req.Source)

			resp, err := next(ctx, req)
			switch {
			case err != nil:
				logger.Error("Request failed", "request_id", req.ID, "type", req.Type, "error", err)
			case !resp.Success:
				logger.Warn("Request rejected", "request_id", req.ID, "type", req.Type, "error", resp.Error)
			}
			return resp, err
		}
	}
}

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.started).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["store"] = "not_checked"
	default:
		if err := s.ready(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	stats := s.renderer.Cache().Stats()
	checks["markdown_cache"] = map[string]any{
		"entries": stats.Size,
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheStats := s.renderer.Cache().Stats()
	summary := s.session.Snapshot().View.Summary

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %v\n\n", name, v)
	}
	gauge := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %v\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_requests_failed_total", "Requests answered with a 5xx status", traceMetrics.FailedRequests)
	gauge("http_request_duration_avg_ms", "Average response time in milliseconds", traceMetrics.AverageResponseTime.Milliseconds())

	counter("budget_items_created_total", "Items created from the unsaved row", s.appMetrics.itemsCreated.Load())
	counter("budget_fields_saved_total", "Field edits accepted by the store", s.appMetrics.fieldsSaved.Load())
	counter("budget_items_deleted_total", "Items deleted", s.appMetrics.itemsDeleted.Load())
	counter("budget_save_failures_total", "Field or create commits that failed", s.appMetrics.saveFailures.Load())
	gauge("budget_items", "Items in the loaded collection", summary.TotalCount)
	gauge("budget_total_cost", "Sum of subtotals over the current view", summary.TotalCost.StringFixed(2))

	counter("markdown_cache_hits_total", "Markdown render cache hits", cacheStats.Hits)
	counter("markdown_cache_misses_total", "Markdown render cache misses", cacheStats.Misses)
	gauge("markdown_cache_entries", "Current markdown cache entries", cacheStats.Size)

	counter("rate_limit_hits_total", "Total rate limit hits", rateLimitMetrics.TotalHits)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", s.rateLimiter.ActiveClients())
	counter("suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)

	gauge("uptime_seconds", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.started).Seconds()))
}

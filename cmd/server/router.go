package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vrfraffle/internal/oracle/auth"
	"vrfraffle/internal/platform/config"
	httpMetrics "vrfraffle/internal/platform/metrics"
	"vrfraffle/internal/platform/middleware"
	"vrfraffle/internal/raffle/handler"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/httputil"
	"vrfraffle/pkg/platform/middleware/metadata"
	"vrfraffle/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	cfg     config.Config
	service handler.Service
	logger  *slog.Logger
	reg     *prometheus.Registry
	health  func(context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	m := httpMetrics.New(d.reg)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.logger, m))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(d.logger, m))
	r.Use(middleware.Timeout(d.cfg.Server.RequestTimeout))
	r.Use(middleware.ContentTypeJSON)

	h := handler.New(d.service, d.logger)
	h.Register(r)
	if d.cfg.Oracle.CallbackSecret != "" {
		h.RegisterOracle(r, auth.New(d.cfg.Oracle.CallbackSecret, d.cfg.Oracle.Issuer))
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := d.health(req.Context()); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "store unavailable"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.reg, promhttp.HandlerOpts{Registry: d.reg}))
	return r
}

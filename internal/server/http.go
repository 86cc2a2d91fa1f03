// Package server assembles the HTTP transport for the alerting API.
package server

import (
	"context"
	"strconv"

	"AlertGate/internal/conf"
	"AlertGate/internal/server/middleware"
	"AlertGate/internal/service"
	pkglog "AlertGate/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, auth *conf.Auth, alertService *service.AlertService, logger log.Logger) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Auth(auth, logHelper),
			middleware.Logging(logHelper),
		),
	}
	if c.HTTP.Network != "" {
		opts = append(opts, http.Network(c.HTTP.Network))
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, http.Address(c.HTTP.Addr))
	}
	if c.HTTP.Timeout != nil {
		opts = append(opts, http.Timeout(c.HTTP.Timeout.AsDuration()))
	}
	srv := http.NewServer(opts...)

	registerAlertRoutes(srv, alertService)

	return srv
}

// registerAlertRoutes wires the producer-facing alert API. Handlers go
// through ctx.Middleware so auth, logging and recovery apply uniformly.
func registerAlertRoutes(srv *http.Server, svc *service.AlertService) {
	r := srv.Route("/api/v1")

	r.POST("/alerts", func(ctx http.Context) error {
		var req service.SendAlertRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		http.SetOperation(ctx, "/api.v1.AlertService/SendAlert")
		h := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
			return svc.SendAlert(c, in.(*service.SendAlertRequest))
		})
		out, err := h(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/alerts/status", func(ctx http.Context) error {
		http.SetOperation(ctx, "/api.v1.AlertService/GetStatus")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return svc.GetStatus(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/alerts/stats", func(ctx http.Context) error {
		http.SetOperation(ctx, "/api.v1.AlertService/GetStats")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return svc.GetStats(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/alerts/recent", func(ctx http.Context) error {
		limit, _ := strconv.Atoi(ctx.Query().Get("limit"))
		http.SetOperation(ctx, "/api.v1.AlertService/RecentAlerts")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return svc.RecentAlerts(c, limit)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.POST("/alerts/test", func(ctx http.Context) error {
		http.SetOperation(ctx, "/api.v1.AlertService/SelfTest")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return svc.SelfTest(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})
}

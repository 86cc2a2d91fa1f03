// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package main

import (
	"AlertGate/internal/biz"
	"AlertGate/internal/conf"
	"AlertGate/internal/data"
	"AlertGate/internal/server"
	"AlertGate/internal/service"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
)

import (
	_ "go.uber.org/automaxprocs"
)

// Injectors from wire.go:

// wireApp init kratos application.
func wireApp(confServer *conf.Server, confData *conf.Data, alerting *conf.Alerting, auth *conf.Auth, logger log.Logger) (*kratos.App, func(), error) {
	alertFactory := biz.NewAlertFactory()
	rateLimiterUseCase := biz.NewRateLimiterUseCase(alerting, logger)
	statsRecorder := biz.NewStatsRecorder()
	smtpTransport := data.NewSMTPTransport(alerting, logger)
	db, cleanup, err := data.NewMySQLClient(confData, logger)
	if err != nil {
		return nil, nil, err
	}
	client, cleanup2, err := data.NewRedisClient(confData, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	dataData, cleanup3, err := data.NewData(confData, logger, db, client)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	fallbackSinkImpl := data.NewFallbackSink(dataData, logger)
	alertCacheImpl, err := data.NewAlertCache(dataData, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	httpWebhookService := data.NewWebhookService(alerting, logger)
	alertManagerUseCase, err := biz.NewAlertManagerUseCase(alerting, alertFactory, rateLimiterUseCase, statsRecorder, smtpTransport, fallbackSinkImpl, alertCacheImpl, httpWebhookService, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	alertService := service.NewAlertService(alertManagerUseCase, logger)
	httpServer := server.NewHTTPServer(confServer, auth, alertService, logger)
	app := newApp(logger, httpServer, alertManagerUseCase)
	return app, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}

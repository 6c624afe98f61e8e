package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/neuromagic/academy/apps/api/echo"
	"github.com/neuromagic/academy/apps/shared"
	"github.com/neuromagic/academy/core"
	logsvc "github.com/neuromagic/academy/services/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	console, err := logsvc.NewConsoleLogger("API", conf.Debug)
	if err != nil {
		return errors.Wrap(err, "setting up console logger")
	}
	logger := logsvc.NewRollbarLogger(console, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer func() { _ = logger.Sync() }()

	// set up storage
	ctx := context.Background()
	st, err := shared.OpenStorage(ctx, conf, true /* migrate */)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up storage: %v", err), err)
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("closing storage", err)
		}
	}()

	cat, err := shared.LoadAssets()
	if err != nil {
		logger.Error(err.Error(), err)
		return err
	}
	mailSvc, err := shared.NewEmailService(conf, logger)
	if err != nil {
		logger.Error(err.Error(), err)
		return err
	}
	svcs := shared.NewServices(conf, st, cat, mailSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, database %q", conf.Build, conf.Database.Engine))
	defer logger.Info("Application stopped")

	validate, translator := shared.NewValidator()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus metrics of the API.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			Catalog:     cat,
			UserSvc:     svcs.Users,
			AccessSvc:   svcs.Access,
			LearningSvc: svcs.Learning,
			PaymentSvc:  svcs.Payments,
			LeadSvc:     svcs.Leads,
			Validate:    validate,
			Translator:  translator,
			Metrics:     registry,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)
		return err

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				return errors.Wrap(err, "could not force stop server")
			}
		}
	}
	return nil
}

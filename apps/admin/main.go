package main

import (
	"context"
	"fmt"
	"os"

	"github.com/neuromagic/academy/apps/shared"
	"github.com/neuromagic/academy/core"
	logsvc "github.com/neuromagic/academy/services/logger"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()

	console, err := logsvc.NewConsoleLogger("ADMIN", conf.Debug)
	if err != nil {
		fmt.Printf("setting up console logger: %v\n", err)
		return 1
	}
	logger := logsvc.NewRollbarLogger(console, conf)
	logger.Enable(false)
	defer func() { _ = logger.Sync() }()

	// migrations are run explicitly
	st, err := shared.OpenStorage(context.Background(), conf, false /* migrate */)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up storage: %v", err), err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("closing storage", err)
		}
	}()

	cat, err := shared.LoadAssets()
	if err != nil {
		logger.Error(err.Error(), err)
		return 1
	}
	mailSvc, err := shared.NewEmailService(conf, logger)
	if err != nil {
		logger.Error(err.Error(), err)
		return 1
	}
	svcs := shared.NewServices(conf, st, cat, mailSvc, logger)
	validate, _ := shared.NewValidator()

	// start CLI
	cli := commandLine{
		db:       st.SQL,
		usrRepo:  st.Users,
		usrSvc:   svcs.Users,
		access:   svcs.Access,
		learning: svcs.Learning,
		catalog:  cat,
		validate: validate,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		return 1
	}
	return 0
}

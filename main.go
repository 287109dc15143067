package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jitsucom/spout/app"
	"github.com/jitsucom/spout/base/logging"
	_ "github.com/jitsucom/spout/implementations"
	_ "github.com/jitsucom/spout/implementations/sql"
	"github.com/jitsucom/spout/spout"
)

func main() {
	exitChannel := make(chan os.Signal, 1)
	signal.Notify(exitChannel, os.Interrupt, syscall.SIGTERM)

	appConfig, err := app.InitAppConfig()
	if err != nil {
		logging.Fatalf("failed to init app config: %v", err)
	}
	runConfigPath := appConfig.RunConfigPath
	if len(os.Args) > 1 {
		runConfigPath = os.Args[1]
	}
	if runConfigPath == "" {
		logging.Fatalf("run config file is required: pass it as the first argument or set SPOUT_RUN_CONFIG")
	}
	runConfig, err := app.LoadRunConfig(runConfigPath)
	if err != nil {
		logging.Fatalf("failed to load run config %s: %v", runConfigPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := <-exitChannel
		logging.Infof("received signal %s. aborting run...", sig)
		cancel()
		shutdownTimeout := time.Duration(appConfig.ShutdownTimeoutSec) * time.Second
		time.AfterFunc(shutdownTimeout, func() {
			logging.SystemErrorf("run did not abort within %s. exiting", shutdownTimeout)
			os.Exit(2)
		})
	}()

	runner := app.NewRunner(appConfig)
	state, _ := runner.Execute(ctx, runConfig)
	if state.Status != spout.Completed {
		os.Exit(1)
	}
}

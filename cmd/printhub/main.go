// Command printhub runs the fiscal print service: it connects to the
// MHI receipt printer over the serial port and exposes the printing and
// reporting operations over HTTP for the POS front-ends.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printhub/internal/config"
	"printhub/internal/hub"
	"printhub/internal/journal"
	"printhub/internal/logger"
	"printhub/internal/server"
	"printhub/mhi"
)

func main() {
	debug := flag.Bool("debug", false, "run against an in-memory fake printer")
	envFile := flag.String("env", ".env", "path to the env file")
	flag.Parse()

	cfg := config.LoadFrom(*envFile)
	log := logger.NewStdLogger("printhub ", cfg.App.Debug || *debug)

	drvCfg, err := cfg.DriverConfig(func(msg string) { log.Debug("%s", msg) })
	if err != nil {
		log.Fatal("configuration: %v", err)
	}

	var drv mhi.Driver
	if *debug {
		log.Warn("debug mode: documents go to an in-memory fake printer")
		drv = mhi.NewFakeDriver(drvCfg)
	} else {
		drv, err = mhi.New(drvCfg)
		if err != nil {
			log.Fatal("driver: %v", err)
		}
	}

	j, err := journal.NewFileJournal(cfg.Journal.Path)
	if err != nil {
		log.Fatal("journal: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connectCancel()
	if err := drv.Connect(connectCtx); err != nil {
		log.Fatal("printer connect: %v", err)
	}
	defer drv.Disconnect()
	log.Info("printer session established")

	h := hub.New(drv, j, log, cfg.App.Software)
	srv := server.New(h, cfg, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(":" + cfg.App.Port) }()

	select {
	case err := <-errCh:
		log.Error("http server: %v", err)
	case <-ctx.Done():
		log.Info("shutting down")
	}
}

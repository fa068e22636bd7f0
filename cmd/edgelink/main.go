package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/edgelink/internal/admin"
	"github.com/danmuck/edgelink/internal/auth"
	"github.com/danmuck/edgelink/internal/bridge"
	"github.com/danmuck/edgelink/internal/config"
	"github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/netcall"
)

const defaultConfigPath = "cmd/edgelink/config.toml"

func main() {
	path := flag.String("config", defaultConfigPath, "service config path (missing file uses defaults)")
	flag.Parse()

	cfg, err := loadServiceConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "edgelink: %v\n", err)
		os.Exit(1)
	}
	logging.ConfigureWith(logging.ProfileRuntime, cfg.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		logging.Errf("edgelink: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	link, err := openTransport(cfg)
	if err != nil {
		return err
	}
	defer link.close()

	svc := bridge.New(cfg.Bridge(), link.kind, link.open, bridge.Peripherals{
		Radio: cfg.RadioController(),
		Net:   netcall.NewHTTPClient(cfg.Network),
	})

	adminErr := make(chan error, 1)
	if cfg.Admin.Listen != "" {
		srv := admin.New(cfg.ID, cfg.Admin.Listen, cfg.Admin.CorsOrigins, auth.FromToken(cfg.Admin.Token), svc)
		go func() {
			adminErr <- srv.Serve(ctx)
		}()
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.Run(ctx)
	}()
	select {
	case err := <-runErr:
		return err
	case err := <-adminErr:
		if err != nil {
			logging.Errf("edgelink: admin surface stopped err=%v", err)
		}
		return <-runErr
	}
}

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/assetscan/internal/log"
	"github.com/teslashibe/assetscan/pkg/hub"
	"github.com/teslashibe/assetscan/pkg/web"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scan API and event stream",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides ASSETSCAN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Addr
	if addrFlag != "" {
		addr = addrFlag
	}

	events := hub.New("events")
	sess, err := newSession(cfg, web.Notifier(events))
	if err != nil {
		return err
	}
	defer sess.Close()

	srv := web.NewServer(addr, sess.ctrl, sess.cameras, events)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := sess.ctrl.Stop(); err != nil {
		log.Warn("stop failed", "error", err)
	}
	return srv.Shutdown()
}

// Command httpserver runs the static-content origin server described by
// a server.config file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kqserve/httpserver/internal/config"
	"github.com/kqserve/httpserver/internal/metrics"
	"github.com/kqserve/httpserver/internal/server"
)

var log = logrus.New()

var (
	configPath   string
	portOverride int
	diskOverride string
	metricsAddr  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(-1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "httpserver",
	Short: "Serve static content over HTTP/1.0 and HTTP/1.1",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "server.config", "path to server.config")
	flags.IntVar(&portOverride, "port", 0, "override the port from server.config")
	flags.StringVar(&diskOverride, "diskpath", "", "override the diskpath from server.config")
	flags.StringVar(&metricsAddr, "metrics", "", "optional loopback address to serve /metrics on, e.g. 127.0.0.1:9090")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("config error: %v", err)
		return err
	}
	if portOverride != 0 {
		cfg.Port = portOverride
	}
	if diskOverride != "" {
		cfg.DiskPath = diskOverride
	}
	if _, err := os.Stat(cfg.DiskPath); err != nil {
		log.Errorf("diskpath %q does not exist: %v", cfg.DiskPath, err)
		return err
	}

	signal.Ignore(syscall.SIGPIPE)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	defer cancel()

	srvLog := log.WithField("component", "server")
	s := server.New(srvLog, cfg.VHosts, cfg.Port, cfg.DiskPath)

	var metricsRegistry *metrics.Registry
	if metricsAddr != "" {
		metricsRegistry = metrics.NewRegistry()
		s.SetMetrics(metricsRegistry)
		go func() {
			if err := metricsRegistry.Serve(ctx, metricsAddr); err != nil {
				log.Warnf("metrics server stopped: %v", err)
			}
		}()
	}

	if err := s.Start(cfg.DropUID, cfg.DropGID); err != nil {
		log.Errorf("failed to start: %v", err)
		return err
	}

	go func() {
		<-ctx.Done()
		log.Infoln("shutdown signal received")
		s.Shutdown()
	}()

	if err := s.Run(); err != nil {
		log.Errorf("event loop error: %v", err)
		s.Stop()
		return err
	}

	s.Stop()
	log.Infoln("httpserver stopped")
	return nil
}

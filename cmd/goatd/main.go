package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/config"
)

const (
	version = "0.1.0-dev"
	appName = "goatd"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "goatd is an authoritative DNS server",
		Long:          "goatd serves authoritative DNS for locally defined zones over UDP, TCP, and DNS-over-HTTPS.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newConfigCheckCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load zones and serve DNS until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}

			log.Info(map[string]any{
				"version":   version,
				"env":       cfg.Env,
				"log_level": cfg.LogLevel,
				"udp_addr":  cfg.UDPAddr,
				"tcp_addr":  cfg.TCPAddr,
				"doh_addr":  cfg.DoHAddr,
				"zone_dir":  cfg.ZoneDir,
			}, "Starting goatd")

			app, err := buildApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.Run(ctx); err != nil {
				return err
			}
			log.Info(nil, "goatd stopped gracefully")
			return nil
		},
	}
}

func newConfigCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-check",
		Short: "Validate the environment configuration and exit",
		Long:  "config-check loads and validates the GOATD_ environment configuration without opening sockets or touching zone files. It exits non-zero when the configuration is invalid.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if _, err := cfg.AdminNets(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration OK")
			fmt.Fprintf(out, "  env:              %s\n", cfg.Env)
			fmt.Fprintf(out, "  log_level:        %s\n", cfg.LogLevel)
			fmt.Fprintf(out, "  udp_addr:         %s\n", cfg.UDPAddr)
			fmt.Fprintf(out, "  tcp_addr:         %s\n", orDisabled(cfg.TCPAddr))
			fmt.Fprintf(out, "  doh_addr:         %s\n", orDisabled(cfg.DoHAddr))
			fmt.Fprintf(out, "  max_in_flight:    %d\n", cfg.MaxInFlight)
			fmt.Fprintf(out, "  reply_timeout_ms: %d\n", cfg.ReplyTimeoutMS)
			fmt.Fprintf(out, "  zone_dir:         %s\n", cfg.ZoneDir)
			fmt.Fprintf(out, "  db_path:          %s\n", orDisabled(cfg.DBPath))
			fmt.Fprintf(out, "  admin_allow_list: %s\n", strings.Join(cfg.AdminAllowList, ", "))
			return nil
		},
	}
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	corecfg "github.com/farmlink-lab/farm-insights/internal/core/config"
	"github.com/farmlink-lab/farm-insights/internal/core/storage/postgres"
	"github.com/farmlink-lab/farm-insights/internal/migrations"
	"github.com/farmlink-lab/farm-insights/internal/reporting"
	"github.com/farmlink-lab/farm-insights/internal/server"
	"github.com/spf13/cobra"
)

// loadConfig tolerates a missing default config file; defaults and env still apply.
func loadConfig(cmd *cobra.Command) (*corecfg.Config, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := corecfg.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openSource connects to the database, optionally migrates it and prepares the row-set queries.
func openSource(ctx context.Context, cfg *corecfg.Config, migrate bool) (*postgres.Adapter, error) {
	adapter, err := postgres.NewAdapter(
		cfg.Database.Driver,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if migrate {
		if err := migrations.RunMigrations(adapter.DB(), cfg.Database.AutoMigrate); err != nil {
			adapter.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	if err := adapter.Prepare(ctx); err != nil {
		adapter.Close()
		return nil, err
	}
	return adapter, nil
}

func newReportingService(cfg *corecfg.Config, adapter *postgres.Adapter) *reporting.Service {
	return reporting.NewService(cfg.Catalog, adapter, reporting.Options{
		TopN:            cfg.Reports.TopN,
		FetchTimeout:    cfg.Reports.FetchTimeoutDuration(),
		MaxWindowMonths: cfg.Reports.MaxWindowMonths,
	})
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the reporting HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// 1. Load Configuration
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			slog.Info("Loaded config",
				"driver", cfg.Database.Driver,
				"reports", len(cfg.Catalog.List()),
				"top_n", cfg.Reports.TopN,
				"fetch_timeout", cfg.Reports.FetchTimeout,
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// 2. Initialize Storage (PostgreSQL) and run migrations
			adapter, err := openSource(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer adapter.Close()

			// 3. Initialize Reporting
			reportingSvc := newReportingService(cfg, adapter)

			// 4. Initialize Server
			srv := server.New(net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)), adapter, cfg.Server.Mode)
			reportingSvc.RegisterRoutes(srv.Engine)

			// Signal handler triggers the shutdown sequence below.
			go func() {
				quit := make(chan os.Signal, 1)
				signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
				select {
				case <-quit:
					slog.Info("Signal received, shutting down...")
					cancel()
				case <-ctx.Done():
				}
			}()

			// 5. HTTP server blocks until ctx is cancelled.
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("server stopped with error: %w", err)
			}
			slog.Info("Shutdown complete")
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var req reporting.ReportRequest

	cmd := &cobra.Command{
		Use:   "run <report>",
		Short: "Generate one report and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			adapter, err := openSource(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer adapter.Close()

			req.ReportID = args[0]
			resp, err := newReportingService(cfg, adapter).Generate(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVar(&req.From, "from", "", "Window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.To, "to", "", "Window end date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&req.FarmID, "farm-id", 0, "Farm the report is about (farmer reports)")
	cmd.Flags().Int64Var(&req.ProductID, "product-id", 0, "Restrict to one product where the report supports it")

	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newReportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List the available reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAUDIENCE\tFILTERS\tTITLE")
			for _, d := range cfg.Catalog.List() {
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", d.ID, d.Audience, d.Filters, d.Title)
			}
			return w.Flush()
		},
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/inquiry/internal/cli"
	httpAdapter "github.com/aretw0/inquiry/pkg/adapters/http"
	"github.com/aretw0/inquiry/pkg/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the pipeline as a JSON API with Server-Sent Events for session progress.
When server.metrics is set, Prometheus metrics are served on that address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if metrics, _ := cmd.Flags().GetString("metrics"); metrics != "" {
			cfg.Server.Metrics = metrics
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		rt, err := cli.Build(sc, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		servers := []*http.Server{{
			Addr:    cfg.Server.Addr,
			Handler: httpAdapter.NewHandler(rt.Pipeline, httpAdapter.WithLogger(logger)),
		}}
		if cfg.Server.Metrics != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler(rt.Registry))
			servers = append(servers, &http.Server{Addr: cfg.Server.Metrics, Handler: mux})
		}

		g, ctx := errgroup.WithContext(sc)
		for _, srv := range servers {
			g.Go(func() error {
				logger.Info("listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		}
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down", "signal", sc.Signal())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			var errs []error
			for _, srv := range servers {
				if err := srv.Shutdown(shutdownCtx); err != nil {
					errs = append(errs, err, srv.Close())
				}
			}
			return errors.Join(errs...)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().String("metrics", "", "Address for the Prometheus endpoint (overrides server.metrics)")
}

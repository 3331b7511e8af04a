package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"binarymlm/internal/worker"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, notification delivery and the metrics endpoint",
		RunE:  serve,
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	scheduler, err := worker.NewScheduler(cfg.MatchingSchedule, a.matching, a.otp, a.redis)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.start(runCtx)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return scheduler.Start(gctx) })
	g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, a.registry) })

	log.Info().Msg("engine started")
	err = g.Wait()
	cancel()
	a.close()
	log.Info().Msg("engine stopped")
	return err
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

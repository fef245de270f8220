package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/Vitals/internal/events"
	"github.com/soaringjerry/Vitals/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				log.Printf("warning: close store: %v", cerr)
			}
		}()

		sink, err := events.FromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		var pub services.Publisher
		if sink != nil {
			pub = sink
			defer func() {
				if cerr := sink.Close(); cerr != nil {
					log.Printf("warning: close event sink: %v", cerr)
				}
			}()
		}

		rt := newRouter(store, cfg, pub)
		seeded, err := rt.EnsureSeedData(ctx)
		if err != nil {
			return err
		}
		if seeded {
			log.Printf("Seeded default accounts")
		}
		if cfg.DemoMode {
			log.Printf("WARNING: demo mode is on, passwords are not checked")
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           rt.Handler(cfg.CORSOrigin),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			log.Printf("Vitals server listening on %s", cfg.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}
		log.Printf("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

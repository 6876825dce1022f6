package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hakim/netdiag/internal/pipeline"
	"github.com/hakim/netdiag/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the detection API over HTTP",
	Long: `Start a JSON HTTP API exposing the detection categories, IP info,
ping/tcping approximations and stored history.

Routes:
  GET /api/health
  GET /api/ip?ip=
  GET /api/detect/{dns-leak|purity|privacy}?ip=
  GET /api/detect/all?ip=
  GET /api/ping?host=&count=
  GET /api/tcping?host=&ports=
  GET /api/history/{ip}?category=

The listen address comes from server.listen unless --listen is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		if !cmd.Flags().Changed("listen") && cfg.Server.Listen != "" {
			listen = cfg.Server.Listen
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		latencyOpts, err := latencyOptions()
		if err != nil {
			return err
		}

		srv, err := server.NewServer(server.Config{
			ListenAddr:     listen,
			Service:        engine,
			Store:          store,
			Scope:          &pipeline.ScopeConfig{AllowedCIDRs: cfg.Scope.AllowedCIDRs},
			Latency:        latencyOpts,
			Logger:         logger,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})
		if err != nil {
			return err
		}
		httpSrv := srv.HTTPServer()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			fmt.Printf("[*] Listening on http://%s\n", listen)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		fmt.Println("[*] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		fmt.Println("[+] Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

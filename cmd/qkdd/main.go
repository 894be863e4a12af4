// qkdd serves simulated key negotiation over JSON-RPC.
//
// Build: go build -o qkdd ./cmd/qkdd/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"
	"github.com/spf13/pflag"

	"github.com/entangle-io/qkd/service"
)

func main() {
	addr := pflag.String("addr", ":9684", "listen address for the JSON-RPC endpoint")
	pflag.Parse()

	logger := log.New("component", "qkdd")
	logger.Info("starting qkdd", "addr", *addr)

	handler, err := service.New(logger).Handler()
	if err != nil {
		logger.Error("failed to build RPC handler", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down qkdd")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("qkdd stopped")
}

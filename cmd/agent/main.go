package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth-bootstrap/internal/factory"
	"auth-bootstrap/internal/util"
)

func main() {
	// Initialize factory (which loads config and initializes all clients)
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	// Local login surface served over loopback HTTP
	server := &http.Server{
		Addr:         cfg.Agent.ListenAddr,
		Handler:      f.Surface().Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Fatal("Login surface failed to start", util.ErrorField(err))
		}
	}()
	f.Surface().MarkReady()

	util.Info("Login surface started",
		util.String("environment", cfg.Environment),
		util.String("address", server.Addr),
	)

	// Bootstrap routing runs for the lifetime of the agent: it gates on
	// capability readiness, then routes between the login surface and the
	// application handoff as the session changes.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go func() {
		if err := f.Machine().Run(runCtx); err != nil {
			util.Error("Bootstrap routing stopped", util.ErrorField(err))
		}
	}()

	waitForShutdown(f, cancelRun, server)
}

func waitForShutdown(f *factory.Factory, cancelRun context.CancelFunc, server *http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		util.Error("Failed to shutdown login surface gracefully", util.ErrorField(err))
	} else {
		util.Info("Login surface shutdown completed")
	}
	f.Close()
}

// cmd/keeper runs the keeper: clock sync, liveness tracking and migration.
// Its HTTP listener only serves Prometheus metrics and a health check.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tribbler/internal/api"
	"tribbler/internal/client"
	"tribbler/internal/cluster"
	"tribbler/internal/keeper"
	"tribbler/internal/store"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to cluster configuration file")
	flag.Parse()

	config, err := cluster.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	backs := make([]store.Storage, len(config.Backs))
	for i, addr := range config.Backs {
		backs[i] = client.New(addr)
	}
	live := cluster.NewLiveSet(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	k := keeper.New(backs, live, false)
	migrator := keeper.NewMigrator(backs, live)
	go migrator.Run(ctx, k.Events())
	go func() {
		if err := k.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("keeper loop: %v", err)
		}
	}()

	var srv *http.Server
	if config.Keeper != "" {
		r := api.NewEngine()
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
		r.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "live": live.Len()})
		})
		srv = &http.Server{Addr: config.Keeper, Handler: r}
		go func() {
			log.Printf("starting keeper on %s", config.Keeper)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("keeper server: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Printf("shutting down keeper")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

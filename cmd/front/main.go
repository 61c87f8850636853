// cmd/front runs a front-end server. It keeps its own liveness view with a
// probe-only keeper loop; clock sync and migration belong to the real keeper.
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

	"tribbler/internal/api"
	"tribbler/internal/bin"
	"tribbler/internal/client"
	"tribbler/internal/cluster"
	"tribbler/internal/front"
	"tribbler/internal/keeper"
	"tribbler/internal/store"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to cluster configuration file")
	addrFlag := flag.String("addr", "", "Bind address (defaults to the config's front address)")
	flag.Parse()

	config, err := cluster.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	addr := *addrFlag
	if addr == "" {
		addr = config.Front
	}
	if addr == "" {
		log.Fatalf("no front-end address: set front in %s or pass -addr", *configPath)
	}

	backs := make([]store.Storage, len(config.Backs))
	for i, a := range config.Backs {
		backs[i] = client.New(a)
	}
	live := cluster.NewLiveSet(nil)
	router := cluster.NewRouter(len(backs), live)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probe := keeper.New(backs, live, true)
	go func() {
		if err := probe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("probe loop: %v", err)
		}
	}()

	server := front.NewServer(bin.NewStorage(backs, router))
	r := api.NewEngine()
	api.NewFront(server).SetupRoutes(r)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Printf("starting front-end on %s (%d backends)", addr, len(backs))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("front-end server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down front-end")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

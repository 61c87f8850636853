// cmd/server runs one storage backend: the in-memory store with its WAL and
// snapshots, served over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tribbler/internal/api"
	"tribbler/internal/cluster"
	"tribbler/internal/store"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to cluster configuration file")
	index := flag.Int("index", 0, "This backend's index into the configured backend list")
	dataDir := flag.String("data-dir", "", "Directory for WAL and snapshots (defaults to data/back-<index>)")
	flag.Parse()

	config, err := cluster.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *index < 0 || *index >= len(config.Backs) {
		log.Fatalf("backend index %d out of range: config lists %d backends", *index, len(config.Backs))
	}
	addr := config.Backs[*index]

	dir := *dataDir
	if dir == "" {
		dir = fmt.Sprintf("data/back-%d", *index)
	}
	kvstore, err := store.Open(dir)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := api.NewEngine()
	api.NewBackend(kvstore).SetupRoutes(r)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := kvstore.Snapshot(); err != nil {
					log.Printf("failed to create snapshot: %v", err)
				}
			}
		}
	}()

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Printf("starting backend %d on %s (data in %s)", *index, addr, dir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("backend server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down backend %d", *index)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := kvstore.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
}

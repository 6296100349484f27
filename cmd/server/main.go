package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"brainboard/internal/api"
	"brainboard/internal/config"
	"brainboard/internal/db"
	"brainboard/pkg/assist"
	"brainboard/pkg/cache"
	"brainboard/pkg/gcal"
	"brainboard/pkg/sync"
	"brainboard/pkg/task"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("BRAINBOARD_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store := task.NewStore()
	slot := cache.NewFile(cfg.CachePath)

	var engine *sync.Engine
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()

		remote := sync.NewPgRemote(pool)
		if err := remote.EnsureTable(ctx); err != nil {
			log.Fatalf("ensure tasks table: %v", err)
		}

		engine = sync.New(store, remote, sync.WithCache(slot))
		engine.Start(ctx)
		defer engine.Stop()
	} else {
		log.Printf("server: no database configured, running local-only")
		runLocal(ctx, store, slot)
	}

	var importer *gcal.Importer
	if src, err := gcal.NewGoogleSource(ctx, cfg.Google.ConfigDir, cfg.Google.CalendarID); err != nil {
		log.Printf("server: calendar import disabled: %v", err)
	} else {
		importer = gcal.NewImporter(store, src)
	}

	var transcriber *assist.Transcriber
	if cfg.TranscribeEndpoint != "" {
		transcriber = &assist.Transcriber{Endpoint: cfg.TranscribeEndpoint}
	}

	server := api.New(store, engine, importer, transcriber)

	log.Printf("brainboard listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, server); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

// runLocal persists every store change to the cache file and watches it for
// writes by other processes, standing in for the sync engine's cache handling.
func runLocal(ctx context.Context, store *task.Store, slot *cache.File) {
	if cached, err := slot.Load(); err != nil {
		log.Printf("server: load cache: %v", err)
	} else if len(cached) > 0 {
		store.Replace(cached, task.OriginRemote)
	}

	changes := store.Subscribe()
	go func() {
		for range changes {
			if err := slot.Save(store.All()); err != nil {
				log.Printf("server: save cache: %v", err)
			}
		}
	}()

	go slot.Watch(ctx, 2*time.Second, func(tasks []task.Task) {
		// Our own Save calls retrigger the watch; only external writes
		// should replace the collection.
		if sameTasks(store.All(), tasks) {
			return
		}
		store.Replace(tasks, task.OriginRemote)
	})
}

func sameTasks(a, b []task.Task) bool {
	if len(a) != len(b) {
		return false
	}
	fps := make(map[string]string, len(a))
	for _, t := range a {
		fps[t.ID] = task.Fingerprint(t)
	}
	for _, t := range b {
		if fps[t.ID] != task.Fingerprint(t) {
			return false
		}
	}
	return true
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"prismcast/api"
	"prismcast/config"
	"prismcast/handlers"
	"prismcast/internal/store"
	"prismcast/services/content"
	"prismcast/services/epg"
	"prismcast/services/provider"
	"prismcast/services/scheduler"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	configPath := os.Getenv("PRISMCAST_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// File logging with rotation.
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if settings.Provider.BaseURL == "" {
		slog.Warn("no provider configured; listings and guide will be empty",
			"config", configPath)
	}

	storage, err := store.Open(settings.Cache.Directory)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer storage.Close()

	client := provider.New(settings.Provider.BaseURL, settings.Provider.Username, settings.Provider.Password)

	contentService := content.NewService(client, storage, settings)

	var fallback *epg.FallbackFetcher
	if settings.Guide.FallbackEnabled {
		fallback = epg.NewFallbackFetcher(client, settings.Guide.FallbackBatchSize)
	}
	guide := epg.NewCoordinator(client, storage, epg.Options{
		TTL:       settings.GuideTTL(),
		Retention: settings.GuideRetention(),
		Fallback:  fallback,
		Targets:   contentService.FallbackTargets,
	})
	contentService.AttachGuide(guide)

	// Keep-warm tasks: the cache-first reads refresh themselves when stale,
	// so interactive callers rarely wait on the provider.
	var tasks []scheduler.Task
	if settings.Provider.BaseURL != "" {
		tasks = append(tasks, scheduler.Task{
			Name:  "listings",
			Every: time.Hour,
			Run: func(ctx context.Context) error {
				if _, err := contentService.Channels(ctx); err != nil {
					return err
				}
				if _, err := contentService.Movies(ctx); err != nil {
					return err
				}
				_, err := contentService.Series(ctx)
				return err
			},
		})
		if settings.Guide.Enabled {
			tasks = append(tasks, scheduler.Task{
				Name:  "guide",
				Every: settings.GuideTTL() / 2,
				Run: func(ctx context.Context) error {
					_, err := guide.Snapshot(ctx)
					return err
				},
			})
		}
	}
	sched := scheduler.NewService(tasks)
	sched.Start(context.Background())
	slog.Info("keep-warm scheduler started", "tasks", len(tasks))

	r := mux.NewRouter()
	api.RegisterRoutes(r,
		handlers.NewContentHandler(contentService),
		handlers.NewEPGHandler(guide, cfgManager),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // guide refreshes can be slow
	}

	go func() {
		log.Printf("prismcast listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// Let background flushes and enrichment finish before closing storage.
	sched.Stop(ctx)
	contentService.Close()
	guide.Close()
}

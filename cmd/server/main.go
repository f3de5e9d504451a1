package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/sensordash/sensordash/pkg/config"
	"github.com/sensordash/sensordash/pkg/query"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 10 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	log.Println("🚀 Starting sensordash query server...")

	cfg := config.Load()
	if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
		log.Fatalf("❌ Failed to create snapshot directory: %v", err)
	}
	log.Printf("📁 Snapshot directory: %s", cfg.SnapshotDir)

	handler := query.NewHandler(cfg.SnapshotDir)

	hub := query.NewRefreshHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started for snapshot refresh events")

	watcher := query.NewWatcher(cfg.SnapshotDir, hub)
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	log.Printf("👀 Snapshot watcher started (polls every %v)", config.SnapshotWatchPeriod)

	router := mux.NewRouter()

	// CORS middleware for dashboard access
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/data/json", handler.HandleDataJSON).Methods("GET")
	api.HandleFunc("/data/csv", handler.HandleDataCSV).Methods("GET")
	api.HandleFunc("/devices", handler.HandleDevices).Methods("GET")
	api.HandleFunc("/columns", handler.HandleColumns).Methods("GET")
	api.HandleFunc("/summary", handler.HandleSummary).Methods("GET")
	api.HandleFunc("/health", handler.HandleHealth).Methods("GET")
	api.HandleFunc("/ws", handler.HandleWebSocket(hub)).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   GET /v1/data/json  - Snapshot rows as JSON (device, days, limit)")
		log.Println("   GET /v1/data/csv   - Combined snapshot CSV download")
		log.Println("   GET /v1/devices    - Device IDs")
		log.Println("   GET /v1/columns    - Snapshot columns")
		log.Println("   GET /v1/summary    - Latest reading per device")
		log.Println("   GET /v1/ws         - Snapshot refresh events")
		log.Println("✅ Server ready to accept requests")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️ Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 sensordash server exited cleanly")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"movienight/api"
	"movienight/config"
	"movienight/handlers"
	"movienight/services/annotations"
	"movienight/services/auth"
	"movienight/services/catalog"
	"movienight/services/device"
	"movienight/services/remote"
	syncsvc "movienight/services/sync"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	configPath := os.Getenv("MOVIENIGHT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
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
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	deviceSvc, err := device.NewService(settings.Storage.Directory)
	if err != nil {
		log.Fatalf("failed to initialise device identity: %v", err)
	}
	log.Printf("Device namespace: %s", deviceSvc.ID())

	remoteClient := remote.NewClient(
		settings.Remote.BaseURL,
		deviceSvc.ID(),
		time.Duration(settings.Remote.TimeoutSeconds)*time.Second,
		settings.Remote.WriteRetries,
	)
	if remoteClient.Enabled() {
		log.Printf("Remote sync enabled: %s", settings.Remote.BaseURL)
	} else {
		log.Println("Remote sync disabled, running local-only")
	}

	annotationsSvc, err := annotations.NewService(settings.Storage.Directory, remoteClient)
	if err != nil {
		log.Fatalf("failed to initialise annotation store: %v", err)
	}

	reconciler := syncsvc.New(remoteClient, annotationsSvc)

	static, err := staticCatalog()
	if err != nil {
		log.Fatalf("failed to load bundled catalog: %v", err)
	}
	catalogSvc := catalog.New(remoteClient, annotationsSvc, reconciler, static)

	creds := make([]auth.Credential, 0, len(settings.Admin.Credentials))
	for _, c := range settings.Admin.Credentials {
		creds = append(creds, auth.Credential{User: c.User, PasswordHash: c.PasswordHash})
	}
	authSvc := auth.NewService(creds, time.Duration(settings.Admin.SessionTTLHours)*time.Hour)
	if !authSvc.Enabled() {
		log.Println("Warning: no admin credentials configured, admin surface is locked")
	}

	r := mux.NewRouter()
	api.Register(
		r,
		handlers.NewEntriesHandler(catalogSvc),
		handlers.NewAnnotationsHandler(annotationsSvc),
		handlers.NewSyncHandler(reconciler, annotationsSvc),
		handlers.NewAdminHandler(catalogSvc, authSvc),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	log.Printf("Server starting on %s", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Let in-flight remote mirror writes settle before exiting.
	annotationsSvc.Flush()

	log.Println("Shutdown complete")
}

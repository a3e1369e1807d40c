package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// envOrDefault lets an environment variable set the flag default, so that
// flags still win when explicitly passed (spec.md §6 "Environment variables
// override built-in defaults but are overridden by flags").
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		port         = flag.String("port", envOrDefault("PORT", DefaultPort), "WebSocket/HTTP port")
		host         = flag.String("host", envOrDefault("HOST", DefaultHost), "Bind host")
		originsCSV   = flag.String("allowed-origins", envOrDefault("ALLOWED_ORIGINS", ""), "Comma-separated WebSocket origin allow-list (empty = permissive)")
		restaurantID = flag.String("restaurant-id", envOrDefault("RESTAURANT_ID", ""), "Restaurant id; overrides the stored value for this run")
		deviceName   = flag.String("device-name", envOrDefault("DEVICE_NAME", ""), "Device name; overrides the stored value for this run")
		projectID    = flag.String("firebase-project", envOrDefault("FIREBASE_PROJECT", ""), "Cloud project id; overrides the stored value for this run")
		verbose      = flag.Bool("verbose", envOrDefault("VERBOSE", "") == "1", "Run the HTTP router in debug mode")
		quiet        = flag.Bool("quiet", false, "Suppress per-request logging")
		configPath   = flag.String("config", "", "Path to the config document (default: platform app-support dir)")
		dbPath       = flag.String("history-db", "printbridge_history.db", "Path to the local job-history database")
	)
	flag.Parse()

	configStore := NewConfigStore(*configPath)
	values, err := configStore.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	history, err := NewJobHistory(*dbPath)
	if err != nil {
		log.Fatalf("failed to open job history: %v", err)
	}
	defer history.Close()

	cfg := RuntimeConfig{
		RestaurantID:   values[ConfigKeyRestaurantID],
		DeviceName:     values[ConfigKeyDeviceName],
		CloudProjectID: values[ConfigKeyFirebaseProjectID],
	}
	if *restaurantID != "" {
		cfg.RestaurantID = *restaurantID
	}
	if *deviceName != "" {
		cfg.DeviceName = *deviceName
	}
	if *projectID != "" {
		cfg.CloudProjectID = *projectID
	}

	supervisor := NewSupervisor(cfg, history)
	if cfg.RestaurantID != "" {
		fmt.Printf("Resuming cloud queue polling for restaurant %s\n", cfg.RestaurantID)
		supervisor.RestartCloud()
	}

	var allowedOrigins []string
	if *originsCSV != "" {
		for _, o := range strings.Split(*originsCSV, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}

	server := NewWSServer(supervisor, configStore, history, allowedOrigins, *port, *verbose, *quiet)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		fmt.Printf("printbridge listening on %s:%s\n", *host, *port)
		serverErr <- server.Start(*host, *port)
	}()

	select {
	case <-sigChan:
		fmt.Println("shutting down")
		supervisor.StopCloud()
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

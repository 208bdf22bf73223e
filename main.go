package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwsl/rnnoise-go/internal/rnnmodel"
)

func main() {
	startTime := time.Now()

	configDir := flag.String("config-dir", ".", "directory containing configuration files")
	configFile := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	configPath := *configFile
	if *configDir != "." {
		configPath = *configDir + "/" + *configFile
	}
	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	model, err := loadModel(config.Model)
	if err != nil {
		log.Fatalf("failed to load model: %v", err)
	}

	var metrics *Metrics
	if config.Prometheus.Enabled {
		metrics = NewMetrics()
		metrics.startPushgatewayLoop(config.Prometheus)
	}

	geoip, err := NewGeoIPService(config.GeoIP.Database)
	if err != nil {
		log.Fatalf("failed to initialize geoip: %v", err)
	}
	defer geoip.Close()

	stats := NewStatsRecorder()
	sessions := NewSessionManager(config.Server, model, metrics, stats, geoip)

	wsHandler := NewWebSocketHandler(sessions, metrics, config.Server)
	healthHandler := NewHealthHandler(sessions)
	statsHandler := NewSessionStatsHandler(stats)
	mcpHandler := NewMCPServer(sessions, stats, config.Model, model)

	mux := http.NewServeMux()
	mux.Handle("/denoise", wsHandler)
	mux.Handle("/health", healthHandler)
	mux.Handle("/api/session-stats", statsHandler)
	mux.Handle("/mcp", mcpHandler)
	if config.Prometheus.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:    config.Server.Listen,
		Handler: mux,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mqttPublisher *MQTTPublisher
	if config.MQTT.Enabled {
		mqttPublisher, err = NewMQTTPublisher(config.MQTT, metrics)
		if err != nil {
			log.Printf("mqtt: disabled: %v", err)
		} else {
			go mqttPublisher.Start(shutdownCtx, sessions)
		}
	}

	var rtpCollector *RTPCollector
	if config.RTP.Enabled {
		rtpCollector, err = NewRTPCollector(config.RTP, sessions)
		if err != nil {
			log.Printf("rtp: disabled: %v", err)
		} else {
			rtpCollector.Start()
		}
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("shutting down")
		cancel()
		if rtpCollector != nil {
			rtpCollector.Stop()
		}
		if mqttPublisher != nil {
			mqttPublisher.Close()
		}
		if err := server.Close(); err != nil {
			log.Printf("error closing server: %v", err)
		}
	}()

	log.Printf("rnnoise-go listening on %s (started %s)", config.Server.Listen, startTime.Format(time.RFC3339))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// loadModel prefers an external manifest/weights pair if configured,
// falling back to the engine's embedded placeholder model otherwise.
func loadModel(cfg ModelConfig) (rnnmodel.Runtime, error) {
	if cfg.ManifestPath == "" || cfg.WeightsPath == "" {
		log.Println("model: no manifest_path/weights_path configured, using embedded placeholder model")
		return rnnmodel.DefaultModel(), nil
	}
	log.Printf("model: loading %s / %s", cfg.ManifestPath, cfg.WeightsPath)
	return rnnmodel.LoadModel(cfg.ManifestPath, cfg.WeightsPath)
}

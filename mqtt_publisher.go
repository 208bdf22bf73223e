package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher periodically publishes aggregate stream telemetry
// (active stream count, frame throughput, average VAD activity) to a
// broker.
type MQTTPublisher struct {
	client  mqtt.Client
	cfg     MQTTConfig
	metrics *Metrics
}

// TelemetryPayload is one published message.
type TelemetryPayload struct {
	Timestamp       int64   `json:"timestamp"`
	ActiveStreams   int     `json:"active_streams"`
	FramesProcessed uint64  `json:"frames_processed_total"`
	AvgVADProb      float64 `json:"avg_vad_probability"`
}

func generateMQTTClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "rnnoise_go_" + hex.EncodeToString(b)
}

// NewMQTTPublisher connects to the configured broker. Connection is
// established eagerly so a misconfigured broker is reported at startup
// rather than silently during the first publish.
func NewMQTTPublisher(cfg MQTTConfig, metrics *Metrics) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateMQTTClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("mqtt: connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, token.Error())
	}
	return &MQTTPublisher{client: client, cfg: cfg, metrics: metrics}, nil
}

// Start runs the periodic telemetry publisher until ctx is canceled.
func (p *MQTTPublisher) Start(ctx context.Context, sessions *SessionManager) {
	interval := time.Duration(p.cfg.PublishInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.publish(sessions)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publish(sessions)
		}
	}
}

func (p *MQTTPublisher) publish(sessions *SessionManager) {
	snap := sessions.Snapshot()
	var framesTotal uint64
	var vadSum float64
	for _, s := range snap {
		framesTotal += s.FramesProcessed
		vadSum += float64(s.LastVADProb)
	}
	avgVAD := 0.0
	if len(snap) > 0 {
		avgVAD = vadSum / float64(len(snap))
	}

	payload, err := json.Marshal(TelemetryPayload{
		Timestamp:       time.Now().Unix(),
		ActiveStreams:   len(snap),
		FramesProcessed: framesTotal,
		AvgVADProb:      avgVAD,
	})
	if err != nil {
		log.Printf("mqtt: marshal telemetry: %v", err)
		return
	}
	token := p.client.Publish(p.cfg.Topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("mqtt: publish failed: %v", err)
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

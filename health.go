package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthStatus is the payload served by HealthHandler: host resource
// usage plus denoiser-specific stream counts.
type HealthStatus struct {
	Status          string  `json:"status"`
	UptimeSec       float64 `json:"uptime_sec"`
	ActiveStreams   int     `json:"active_streams"`
	CPUPercent      float64 `json:"cpu_percent"`
	CPUCores        int     `json:"cpu_cores"`
	MemoryUsedBytes uint64  `json:"memory_used_bytes"`
	MemoryPercent   float64 `json:"memory_percent"`
}

// HealthHandler serves GET /health with a point-in-time HealthStatus.
type HealthHandler struct {
	sessions  *SessionManager
	startedAt time.Time
	cpuCores  int
}

func NewHealthHandler(sessions *SessionManager) *HealthHandler {
	cores, err := cpu.Counts(true)
	if err != nil {
		log.Printf("health: cpu.Counts failed: %v", err)
		cores = 0
	}
	return &HealthHandler{sessions: sessions, startedAt: time.Now(), cpuCores: cores}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:        "ok",
		UptimeSec:     time.Since(h.startedAt).Seconds(),
		ActiveStreams: h.sessions.Count(),
		CPUCores:      h.cpuCores,
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		status.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status.MemoryUsedBytes = vm.Used
		status.MemoryPercent = vm.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("health: encode response: %v", err)
	}
}

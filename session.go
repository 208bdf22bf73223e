package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwsl/rnnoise-go/internal/rnndsp"
	"github.com/cwsl/rnnoise-go/internal/rnnmodel"
)

// Stream is one denoising session: a uuid identity bound to a private
// rnndsp.State, along with the bookkeeping SessionManager needs to
// enforce limits and reap idle streams.
type Stream struct {
	ID         string
	SourceIP   string
	UserAgent  string
	CreatedAt  time.Time
	LastActive time.Time

	mu    sync.Mutex
	state *rnndsp.State

	FramesProcessed uint64
	LastVADProb     float32
}

// touch updates LastActive under the stream's lock; call on every frame.
func (s *Stream) touch() {
	s.mu.Lock()
	s.LastActive = time.Now()
	s.mu.Unlock()
}

// ProcessFrame denoises one frame through the stream's private state,
// serializing concurrent callers (a stream is normally driven by a
// single reader goroutine, but the lock makes concurrent use safe
// rather than undefined).
func (s *Stream) ProcessFrame(out, in *[rnndsp.Frame]float32) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	vad := s.state.ProcessFrame(out, in)
	s.LastActive = time.Now()
	s.FramesProcessed++
	s.LastVADProb = vad
	return vad
}

// SessionManager owns every live Stream, keyed by uuid, the way the
// teacher's SessionManager owns radiod-channel Sessions keyed by id.
type SessionManager struct {
	mu          sync.RWMutex
	streams     map[string]*Stream
	ipCounts    map[string]int
	maxSessions int
	maxPerIP    int
	idleTimeout time.Duration
	model       rnnmodel.Runtime
	metrics     *Metrics
	stats       *StatsRecorder
	geoip       *GeoIPService
}

// NewSessionManager builds a manager bound to a shared RNN runtime
// (every stream gets its own rnndsp.State, but states share the same
// read-only model weights) and starts its idle-stream reaper. stats and
// geoip are optional (nil disables closed-stream analytics recording).
func NewSessionManager(cfg ServerConfig, model rnnmodel.Runtime, metrics *Metrics, stats *StatsRecorder, geoip *GeoIPService) *SessionManager {
	sm := &SessionManager{
		streams:     make(map[string]*Stream),
		ipCounts:    make(map[string]int),
		maxSessions: cfg.MaxSessions,
		maxPerIP:    cfg.MaxSessionsIP,
		idleTimeout: time.Duration(cfg.SessionTimeout) * time.Second,
		model:       model,
		metrics:     metrics,
		stats:       stats,
		geoip:       geoip,
	}
	go sm.reapLoop()
	return sm
}

// Open creates a new Stream for sourceIP, rejecting it if the global or
// per-IP session cap would be exceeded.
func (sm *SessionManager) Open(sourceIP, userAgent string) (*Stream, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.maxSessions > 0 && len(sm.streams) >= sm.maxSessions {
		return nil, fmt.Errorf("session: max_sessions limit (%d) reached", sm.maxSessions)
	}
	if sm.maxPerIP > 0 && sm.ipCounts[sourceIP] >= sm.maxPerIP {
		return nil, fmt.Errorf("session: max_sessions_ip limit (%d) reached for %s", sm.maxPerIP, sourceIP)
	}

	id := uuid.NewString()
	st := &Stream{
		ID:         id,
		SourceIP:   sourceIP,
		UserAgent:  userAgent,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
		state:      rnndsp.NewState(sm.model),
	}
	sm.streams[id] = st
	sm.ipCounts[sourceIP]++
	if sm.metrics != nil {
		sm.metrics.StreamOpened()
	}
	return st, nil
}

// Close removes a stream by id, releasing its per-IP slot and recording
// a closed-stream analytics entry if a StatsRecorder is attached.
func (sm *SessionManager) Close(id, reason string) {
	sm.mu.Lock()
	st, ok := sm.streams[id]
	if !ok {
		sm.mu.Unlock()
		return
	}
	delete(sm.streams, id)
	sm.ipCounts[st.SourceIP]--
	if sm.ipCounts[st.SourceIP] <= 0 {
		delete(sm.ipCounts, st.SourceIP)
	}
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.StreamClosed(reason)
	}
	if sm.stats != nil {
		country := ""
		if sm.geoip != nil {
			country = sm.geoip.CountryCode(st.SourceIP)
		}
		sm.stats.Record(ClosedStreamStats{
			Country:         country,
			UserAgent:       st.UserAgent,
			DurationSeconds: time.Since(st.CreatedAt).Seconds(),
			EndedAt:         time.Now(),
		})
	}
}

// SetModel swaps the model new streams are created with. Streams already
// open keep running against whatever model they were opened with.
func (sm *SessionManager) SetModel(model rnnmodel.Runtime) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.model = model
}

// Get returns the stream with the given id, if any.
func (sm *SessionManager) Get(id string) (*Stream, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	st, ok := sm.streams[id]
	return st, ok
}

// Count returns the number of currently open streams.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.streams)
}

// Snapshot returns a copy of every live stream's bookkeeping, used by
// the MCP tool server and the MQTT telemetry publisher.
func (sm *SessionManager) Snapshot() []StreamInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]StreamInfo, 0, len(sm.streams))
	for _, st := range sm.streams {
		st.mu.Lock()
		out = append(out, StreamInfo{
			ID:              st.ID,
			SourceIP:        st.SourceIP,
			CreatedAt:       st.CreatedAt,
			LastActive:      st.LastActive,
			FramesProcessed: st.FramesProcessed,
			LastVADProb:     st.LastVADProb,
		})
		st.mu.Unlock()
	}
	return out
}

// StreamInfo is a read-only snapshot of a Stream's bookkeeping fields.
type StreamInfo struct {
	ID              string
	SourceIP        string
	CreatedAt       time.Time
	LastActive      time.Time
	FramesProcessed uint64
	LastVADProb     float32
}

// reapLoop periodically closes streams that have been idle longer than
// idleTimeout.
func (sm *SessionManager) reapLoop() {
	if sm.idleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(sm.idleTimeout / 4)
	defer ticker.Stop()
	for range ticker.C {
		var stale []string
		sm.mu.RLock()
		now := time.Now()
		for id, st := range sm.streams {
			st.mu.Lock()
			idle := now.Sub(st.LastActive)
			st.mu.Unlock()
			if idle > sm.idleTimeout {
				stale = append(stale, id)
			}
		}
		sm.mu.RUnlock()
		for _, id := range stale {
			sm.Close(id, "idle_timeout")
		}
	}
}

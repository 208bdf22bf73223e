package main

import (
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ua-parser/uap-go/uaparser"
)

// SessionStatsRateLimiter throttles the public stats endpoint to one
// request per statsRateLimitWindow per client IP, adapted from the
// teacher's per-IP rate limiting in ratelimit.go.
const statsRateLimitWindow = 3 * time.Second

type SessionStatsRateLimiter struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewSessionStatsRateLimiter() *SessionStatsRateLimiter {
	return &SessionStatsRateLimiter{last: make(map[string]time.Time)}
}

func (rl *SessionStatsRateLimiter) AllowRequest(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	if last, ok := rl.last[ip]; ok && now.Sub(last) < statsRateLimitWindow {
		return false
	}
	rl.last[ip] = now
	return true
}

// uaParser is shared across requests; uaparser.Parser is safe for
// concurrent use once loaded.
var uaParser = uaparser.NewFromSaved()

// SessionStatsHandler serves GET /api/session-stats: privacy-conscious,
// aggregate analytics over streams closed in the last statsRetention
// window. No per-session IP or identity is ever returned, only derived
// country, client, and duration-bucket counts.
type SessionStatsHandler struct {
	stats       *StatsRecorder
	rateLimiter *SessionStatsRateLimiter
}

func NewSessionStatsHandler(stats *StatsRecorder) *SessionStatsHandler {
	return &SessionStatsHandler{stats: stats, rateLimiter: NewSessionStatsRateLimiter()}
}

func (h *SessionStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := getClientIP(r)
	if !h.rateLimiter.AllowRequest(clientIP) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "rate_limit_exceeded",
			"message": "rate limit exceeded, please wait before retrying",
		})
		return
	}

	endTime := time.Now().UTC()
	startTime := endTime.Add(-statsRetention)
	entries := h.stats.Snapshot(startTime)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"period_start": startTime.Format(time.RFC3339),
		"period_end":   endTime.Format(time.RFC3339),
		"period_days":  int(statsRetention.Hours() / 24),
		"stats":        summarizeStats(entries),
	})
}

// summarizeStats aggregates closed-stream entries into country, client,
// OS, duration-bucket, and hourly-activity counts.
func summarizeStats(entries []ClosedStreamStats) map[string]interface{} {
	countryCounts := make(map[string]int)
	clientCounts := make(map[string]int)
	osCounts := make(map[string]int)
	durationBuckets := make(map[string]int)
	hourlyActivity := make([]int, 24)

	for _, e := range entries {
		country := e.Country
		if country == "" {
			country = "Unknown"
		}
		countryCounts[country]++

		if e.UserAgent != "" {
			client := uaParser.Parse(e.UserAgent)
			if client.UserAgent.Family != "" {
				name := client.UserAgent.Family
				if client.UserAgent.Major != "" {
					name += " " + client.UserAgent.Major
				}
				clientCounts[name]++
			}
			if client.Os.Family != "" {
				os := client.Os.Family
				if client.Os.Major != "" {
					os += " " + client.Os.Major
				}
				osCounts[os]++
			}
		}

		durationBuckets[durationBucket(e.DurationSeconds)]++
		hourlyActivity[e.EndedAt.Hour()]++
	}

	return map[string]interface{}{
		"total_sessions":    len(entries),
		"countries":         sortedCounts(countryCounts),
		"clients":           sortedCounts(clientCounts),
		"operating_systems": sortedCounts(osCounts),
		"duration_buckets":  durationBuckets,
		"hourly_activity":   hourlyActivity,
	}
}

func durationBucket(seconds float64) string {
	minutes := seconds / 60.0
	switch {
	case minutes < 1:
		return "0-1min"
	case minutes < 5:
		return "1-5min"
	case minutes < 15:
		return "5-15min"
	case minutes < 30:
		return "15-30min"
	case minutes < 60:
		return "30-60min"
	default:
		return "60min+"
	}
}

type namedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func sortedCounts(m map[string]int) []namedCount {
	out := make([]namedCount, 0, len(m))
	for k, v := range m {
		out = append(out, namedCount{Name: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// getClientIP strips the port from RemoteAddr. X-Forwarded-For/X-Real-IP
// are never trusted for rate-limiting purposes; spoofing that header
// would only let a client evade its own stats-endpoint rate limit, not
// forge another client's identity.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package main

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// GeoIPService resolves a stream's source IP to a country, for the
// session analytics API. It exposes only the country-level lookup this
// daemon's analytics need.
type GeoIPService struct {
	db      *geoip2.Reader
	mu      sync.RWMutex
	enabled bool
}

// NewGeoIPService opens dbPath. An empty path yields a disabled service
// rather than an error: GeoIP lookup is optional.
func NewGeoIPService(dbPath string) (*GeoIPService, error) {
	if dbPath == "" {
		log.Println("geoip: database path not configured, service disabled")
		return &GeoIPService{enabled: false}, nil
	}
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", dbPath, err)
	}
	log.Printf("geoip: service initialized (database: %s)", dbPath)
	return &GeoIPService{db: db, enabled: true}, nil
}

func (g *GeoIPService) IsEnabled() bool { return g.enabled }

// CountryCode returns the ISO country code for ipStr, or "" if the
// service is disabled or the lookup fails.
func (g *GeoIPService) CountryCode(ipStr string) string {
	if !g.enabled {
		return ""
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	record, err := g.db.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the underlying database file.
func (g *GeoIPService) Close() error {
	if !g.enabled {
		return nil
	}
	return g.db.Close()
}

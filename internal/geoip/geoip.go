// internal/geoip/geoip.go

// Package geoip resolves client IPs to ISO country codes for vote records.
package geoip

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	"github.com/sirupsen/logrus"
)

// Locator is what services depend on. A nil-database Resolver satisfies it and returns "".
type Locator interface {
	LookupCountry(ip string) string
}

type Resolver struct {
	mu sync.RWMutex
	db *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open loads a GeoLite2-Country database. An empty path yields a disabled resolver.
func Open(path string) (*Resolver, error) {
	r := &Resolver{}
	if path == "" {
		return r, nil
	}

	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	r.db = db

	logrus.WithField("path", path).Info("GeoIP database loaded")
	return r, nil
}

func (r *Resolver) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db != nil
}

// LookupCountry returns the country code, "LOCAL" for private and loopback addresses, or "" when
// unknown.
func (r *Resolver) LookupCountry(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
		return "LOCAL"
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return ""
	}

	var record countryRecord
	if err := r.db.Lookup(parsed, &record); err != nil {
		logrus.WithError(err).WithField("ip", ip).Debug("GeoIP lookup failed")
		return ""
	}
	return record.Country.ISOCode
}

func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

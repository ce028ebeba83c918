// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip resolves client IP addresses to ISO country codes using a
// MaxMind GeoLite2-Country database.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
)

// Local is returned for private, loopback and link-local addresses.
const Local = "LOCAL"

// ErrNoDatabase is returned by Open when no path is configured.
var ErrNoDatabase = errors.New("geoip database path is empty")

// Lookup resolves IPs against an mmdb file. A nil *Lookup resolves only
// local addresses.
type Lookup struct {
	path string

	mu      sync.RWMutex
	db      *maxminddb.Reader
	modTime time.Time
}

// geoRecord matches the GeoLite2-Country database structure.
type geoRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open loads the database at path.
func Open(path string) (*Lookup, error) {
	if path == "" {
		return nil, ErrNoDatabase
	}
	g := &Lookup{path: path}
	if _, err := g.load(); err != nil {
		return nil, err
	}
	return g, nil
}

// load opens the file again if its modification time changed. It reports
// whether a new reader was swapped in.
func (g *Lookup) load() (bool, error) {
	info, err := os.Stat(g.path)
	if err != nil {
		return false, fmt.Errorf("geoip database: %w", err)
	}

	g.mu.RLock()
	current := g.db != nil && info.ModTime().Equal(g.modTime)
	g.mu.RUnlock()
	if current {
		return false, nil
	}

	db, err := maxminddb.Open(g.path)
	if err != nil {
		return false, fmt.Errorf("opening geoip database: %w", err)
	}

	g.mu.Lock()
	old := g.db
	g.db, g.modTime = db, info.ModTime()
	g.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return true, nil
}

// Country returns the ISO code for ip, Local for non-routable addresses and
// "" when the address is invalid or unknown.
func (g *Lookup) Country(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	addr = addr.Unmap()
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return Local
	}
	if g == nil {
		return ""
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.db == nil {
		return ""
	}

	var record geoRecord
	if err := g.db.Lookup(net.IP(addr.AsSlice()), &record); err != nil {
		return ""
	}
	return record.Country.ISOCode
}

// Reload picks up a replaced database file. It returns 1 when the file was
// reloaded so it can run as a scheduled job.
func (g *Lookup) Reload(context.Context) (int64, error) {
	reloaded, err := g.load()
	if err != nil || !reloaded {
		return 0, err
	}
	return 1, nil
}

// Close releases the database.
func (g *Lookup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	return err
}

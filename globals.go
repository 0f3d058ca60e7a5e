package main

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mapembed/pkg/store"
	"mapembed/pkg/world"
)

// --- Configuration ---
const (
	LogDir          = "./logs"
	DefaultScanURL  = "https://localhost"
	SnapshotListMax = 50
)

var (
	// Infrastructure
	InfoLog  *log.Logger
	ErrorLog *log.Logger
	archive  *store.Store

	cfg Config

	// World State
	galaxy = world.NewGalaxy()
	hub    *Hub
	status = &passStatus{}

	// Rate Limiting
	ipLimiters = make(map[string]*rate.Limiter)
	ipLock     sync.Mutex
)

// passReport is what /api/status reports about the merge loop.
type passReport struct {
	Passes       int       `json:"passes"`
	LastPassAt   time.Time `json:"last_pass_at"`
	LastNow      int64     `json:"last_now"`
	LastError    string    `json:"last_error,omitempty"`
	StarsMerged  int       `json:"stars_merged"`
	FleetsMerged int       `json:"fleets_merged"`
	Threats      int       `json:"threats"`
}

type passStatus struct {
	mu     sync.Mutex
	report passReport
}

func (p *passStatus) record(now int64, stars, fleets, threats int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := &p.report
	r.Passes++
	r.LastPassAt = time.Now()
	r.LastNow = now
	r.LastError = ""
	if err != nil {
		r.LastError = err.Error()
	}
	r.StarsMerged, r.FleetsMerged, r.Threats = stars, fleets, threats
}

func (p *passStatus) snapshot() passReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report
}

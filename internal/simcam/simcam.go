// Package simcam generates synthetic camera detections against a running
// service. It stands in for real camera adapters during load and smoke
// testing: each simulated person owns a stable base signature, and every
// detection jitters it slightly the way consecutive frames of one face do.
package simcam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gatewatch/pkg/logger"
)

// Default generator configuration constants.
const (
	defaultPeople    = 20
	defaultRate      = 10 // detections per second
	defaultDimension = 128
	defaultJitter    = 0.05
	defaultTimeout   = 10 * time.Second
)

// Config controls a generator run.
type Config struct {
	BaseURL   string
	Cameras   []string
	People    int
	Rate      int // detections per second
	Duration  time.Duration
	Dimension int
	Jitter    float64
	Timeout   time.Duration
	Seed      int64
}

// Stats summarizes a completed run.
type Stats struct {
	Submitted  int
	Accepted   int
	Duplicates int
	Rejected   int
	Errors     int
}

type person struct {
	id   string
	base []float32
}

// Generator posts synthetic detections to the ingest endpoint.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	people []person
	client *http.Client
	logger logger.Logger
}

// New creates a generator; zero config fields fall back to defaults.
func New(cfg Config) *Generator {
	if cfg.People <= 0 {
		cfg.People = defaultPeople
	}
	if cfg.Rate <= 0 {
		cfg.Rate = defaultRate
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = defaultDimension
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = defaultJitter
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.Cameras) == 0 {
		cfg.Cameras = []string{"cam-entrance"}
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	g := &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Get().Named("simcam"),
	}

	g.people = make([]person, cfg.People)
	for i := range g.people {
		g.people[i] = person{
			id:   fmt.Sprintf("person-%03d", i),
			base: g.randomVector(),
		}
	}

	return g
}

// BaseVector returns the stable signature of the i-th simulated person, for
// enrolling the synthetic population before a run.
func (g *Generator) BaseVector(i int) ([]float32, string, error) {
	if i < 0 || i >= len(g.people) {
		return nil, "", fmt.Errorf("person index %d out of range", i)
	}
	out := make([]float32, len(g.people[i].base))
	copy(out, g.people[i].base)
	return out, g.people[i].id, nil
}

// Run posts detections at the configured rate until the duration elapses or
// ctx is canceled.
func (g *Generator) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	interval := time.Second / time.Duration(g.cfg.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	deadline := time.Now().Add(g.cfg.Duration)
	for g.cfg.Duration <= 0 || time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-ticker.C:
			g.submitOne(ctx, &stats)
		}
	}

	g.logger.Info(ctx, "simulation finished",
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("rejected", stats.Rejected),
		logger.Int("errors", stats.Errors),
	)
	return stats, nil
}

func (g *Generator) submitOne(ctx context.Context, stats *Stats) {
	p := g.people[g.rng.Intn(len(g.people))]
	camera := g.cfg.Cameras[g.rng.Intn(len(g.cfg.Cameras))]

	payload := map[string]any{
		"detection_id":   uuid.NewString(),
		"camera_id":      camera,
		"captured_at":    time.Now().UTC().Format(time.RFC3339),
		"signature":      g.jittered(p.base),
		"raw_confidence": 0.8 + g.rng.Float64()*0.2,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		stats.Errors++
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/api/v1/detections", bytes.NewReader(body))
	if err != nil {
		stats.Errors++
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		stats.Errors++
		return
	}
	_ = resp.Body.Close()

	stats.Submitted++
	switch resp.StatusCode {
	case http.StatusAccepted:
		stats.Accepted++
	case http.StatusOK:
		stats.Duplicates++
	default:
		stats.Rejected++
	}
}

func (g *Generator) randomVector() []float32 {
	v := make([]float32, g.cfg.Dimension)
	for i := range v {
		v[i] = g.rng.Float32()
	}
	return v
}

// jittered perturbs each component a little so repeated detections of one
// person stay close to the base vector without being identical.
func (g *Generator) jittered(base []float32) []float32 {
	v := make([]float32, len(base))
	for i := range base {
		v[i] = base[i] + (g.rng.Float32()*2-1)*float32(g.cfg.Jitter)
	}
	return v
}

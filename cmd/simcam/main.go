package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/gatewatch/internal/simcam"
	"github.com/okian/gatewatch/pkg/logger"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		cameras  = flag.String("cameras", "cam-entrance,cam-lobby", "Comma-separated camera ids")
		people   = flag.Int("people", 20, "Number of simulated people")
		rate     = flag.Int("rate", 10, "Detections per second")
		duration = flag.Duration("duration", time.Minute, "How long to run")
		seed     = flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := simcam.New(simcam.Config{
		BaseURL:  *baseURL,
		Cameras:  strings.Split(*cameras, ","),
		People:   *people,
		Rate:     *rate,
		Duration: *duration,
		Seed:     *seed,
	})

	if _, err := gen.Run(ctx); err != nil && ctx.Err() == nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
	}
}

// Package testdata provides utilities for generating sample metrics data
// to test Grafana dashboards without using real production data.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fyrsmithlabs/counselsim/internal/metrics"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	m := metrics.New()

	// Generate initial sample data
	generateSampleData(m)

	// Start background goroutine to continuously generate data
	ctx, cancel := context.WithCancel(context.Background())
	go generateContinuousData(ctx, m)

	// Serve metrics
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'counselsim-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func generateSampleData(m *metrics.Metrics) {
	providers := []string{"openai", "deepinfra", "stub"}

	// Gateway traffic with mostly successful outcomes
	for i := 0; i < 200; i++ {
		provider := randomChoice(providers)
		outcome := "ok"
		if rand.Float64() > 0.9 {
			outcome = "error"
		}
		m.RecordGatewayRequest(provider, outcome, 0.05+rand.Float64()*2.0)
	}

	// Conversions: each run makes one or more attempts
	for i := 0; i < 40; i++ {
		attempts := rand.Intn(3) + 1
		for j := 0; j < attempts; j++ {
			m.RecordConversionAttempt()
		}
		outcome := "ok"
		if rand.Float64() > 0.85 {
			outcome = "failed"
		}
		m.RecordConversion(outcome)
	}

	// Dialogue turns
	for i := 0; i < 150; i++ {
		m.RecordSessionTurn()
	}

	m.SetActiveSessions(rand.Intn(8) + 1)
}

func generateContinuousData(ctx context.Context, m *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	providers := []string{"openai", "deepinfra", "stub"}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Add some random activity
			if rand.Float64() > 0.3 {
				provider := randomChoice(providers)
				outcome := "ok"
				if rand.Float64() > 0.9 {
					outcome = "error"
				}
				m.RecordGatewayRequest(provider, outcome, 0.05+rand.Float64()*2.0)
			}
			if rand.Float64() > 0.5 {
				m.RecordSessionTurn()
			}
			if rand.Float64() > 0.7 {
				m.RecordConversionAttempt()
				outcome := "ok"
				if rand.Float64() > 0.85 {
					outcome = "failed"
				}
				m.RecordConversion(outcome)
			}
			if rand.Float64() > 0.8 {
				m.SetActiveSessions(rand.Intn(8) + 1)
			}
		}
	}
}

func randomChoice(choices []string) string {
	return choices[rand.Intn(len(choices))]
}

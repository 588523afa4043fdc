// Mock monitored service for local development: serves the health and
// metrics-summary endpoints the remediation engine probes, with a fault
// toggle so incident detection and recovery can be exercised end to end.
package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type faultState struct {
	mu   sync.Mutex
	mode string
}

func (f *faultState) set(mode string) {
	f.mu.Lock()
	f.mode = mode
	f.mu.Unlock()
}

func (f *faultState) get() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func main() {
	fault := &faultState{}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if fault.get() == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/metrics/summary", func(w http.ResponseWriter, _ *http.Request) {
		snapshot := map[string]float64{
			"cpu_usage":    20 + rand.Float64()*10,
			"memory_usage": 40 + rand.Float64()*10,
			"latency_p95":  80 + rand.Float64()*40,
			"error_rate":   rand.Float64() * 2,
		}
		switch fault.get() {
		case "cpu":
			snapshot["cpu_usage"] = 92 + rand.Float64()*6
		case "memory":
			snapshot["memory_usage"] = 90 + rand.Float64()*8
		case "latency":
			snapshot["latency_p95"] = 900 + rand.Float64()*600
		}
		writeJSON(w, snapshot)
	})

	// POST /fault?mode=cpu|memory|latency|down|clear
	mux.HandleFunc("/fault", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		mode := r.URL.Query().Get("mode")
		if mode == "clear" {
			mode = ""
		}
		fault.set(mode)
		writeJSON(w, map[string]string{"mode": mode})
	})

	logger := log.New(log.Writer(), "mock-service ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8081",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8081")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

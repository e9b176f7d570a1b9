package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Chronic700/agent-connect/internal/dispatch"
)

var requestCount atomic.Int64

// mockagent is a standalone dev tool that stands in for a recipient
// agent's webhook receiver, so the relay can be exercised end to end
// without a real recipient. It verifies the X-Signature header rather
// than trusting the payload.
func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	secret := os.Getenv("WEBHOOK_SECRET")

	// Always returns 200.
	http.HandleFunc("/webhook/ok", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, http.StatusOK, secret)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	})

	// Delays 3 seconds before returning 200 — useful for exercising the
	// dispatcher's HTTP timeout.
	http.HandleFunc("/webhook/slow", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		time.Sleep(3 * time.Second)
		logRequest(r, count, http.StatusOK, secret)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received (slow)"})
	})

	// Always returns 400 — exercises the Terminal outcome path.
	http.HandleFunc("/webhook/reject", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, http.StatusBadRequest, secret)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "rejected"})
	})

	// Always returns 500 — exercises the Transient/retry path.
	http.HandleFunc("/webhook/error", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, http.StatusInternalServerError, secret)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})

	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	log.Printf("mock agent starting on :%s", port)
	log.Printf("  POST /webhook/ok       -> 200 OK")
	log.Printf("  POST /webhook/slow     -> 200 OK (3s delay)")
	log.Printf("  POST /webhook/reject   -> 400 Bad Request")
	log.Printf("  POST /webhook/error    -> 500 Internal Server Error")
	log.Printf("  GET  /stats            -> request count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequest(r *http.Request, count int64, status int, secret string) {
	sig := r.Header.Get("X-Signature")
	verified := "unverified"
	if secret != "" {
		body, _ := io.ReadAll(r.Body)
		hexSig := strings.TrimPrefix(sig, "sha256=")
		if dispatch.Verify(body, hexSig, secret) {
			verified = "verified"
		} else {
			verified = "MISMATCH"
		}
	}

	fmt.Printf("[#%d] %s %s -> %d | sig=%s (%s) ua=%s\n",
		count, r.Method, r.URL.Path, status, truncate(sig, 20), verified, r.Header.Get("User-Agent"))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

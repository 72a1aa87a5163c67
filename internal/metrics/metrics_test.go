package metrics

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestServerServesMetricsAndHealth(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	server := NewServer(ln.Addr().String(), zerolog.Nop())
	server.SetListener(ln)
	if err := server.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = server.Stop() }()

	SessionsStarted.Inc()

	base := "http://" + ln.Addr().String()

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("Unexpected health response: %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "sitefocus_sessions_started_total") {
		t.Error("Expected sitefocus_sessions_started_total in metrics output")
	}
}

func TestFlushReasonsAreSeparate(t *testing.T) {
	before := testutil.ToFloat64(Flushes.WithLabelValues("interval"))
	Flushes.WithLabelValues("interval").Inc()
	Flushes.WithLabelValues("ticks").Inc()

	if got := testutil.ToFloat64(Flushes.WithLabelValues("interval")); got != before+1 {
		t.Errorf("Expected interval flushes %v, got %v", before+1, got)
	}
}

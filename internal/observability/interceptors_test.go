package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"live-caption-service/internal/observability/metrics"
)

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in      string
		service string
		method  string
	}{
		{"/grpc.health.v1.Health/Check", "grpc.health.v1.Health", "Check"},
		{"/live.caption.CaptionService/Snapshot", "live.caption.CaptionService", "Snapshot"},
		{"Check", "unknown", "Check"},
		{"", "unknown", ""},
	}
	for _, tt := range tests {
		service, method := SplitMethod(tt.in)
		if service != tt.service || method != tt.method {
			t.Errorf("SplitMethod(%q) = (%q, %q), want (%q, %q)", tt.in, service, method, tt.service, tt.method)
		}
	}
}

func callUnary(t *testing.T, logger zerolog.Logger, m *metrics.Metrics, fullMethod string, handlerErr error) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger = logger.Output(&buf)

	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 5000},
	})
	interceptor := UnaryServerInterceptor(m, logger)
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: fullMethod},
		func(context.Context, interface{}) (interface{}, error) { return nil, handlerErr })
	if !errors.Is(err, handlerErr) {
		t.Fatalf("interceptor changed the handler error: %v", err)
	}

	if buf.Len() == 0 {
		return nil
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestUnaryInterceptor_FailureLoggedWithCallContext(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	logger := zerolog.New(nil).Level(zerolog.InfoLevel)

	entry := callUnary(t, logger, m, "/live.caption.CaptionService/Snapshot",
		status.Error(codes.Unavailable, "controller closed"))

	if entry == nil {
		t.Fatal("expected a warning for a failed call")
	}
	want := map[string]string{
		"level":   "warn",
		"service": "live.caption.CaptionService",
		"method":  "Snapshot",
		"kind":    "unary",
		"code":    "Unavailable",
		"peer":    "10.0.0.7:5000",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}

	got := testutil.ToFloat64(m.GRPCCalls.WithLabelValues("/live.caption.CaptionService/Snapshot", "Unavailable"))
	if got != 1 {
		t.Errorf("expected 1 recorded call, got %v", got)
	}
}

func TestUnaryInterceptor_HealthProbesQuiet(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	entry := callUnary(t, zerolog.New(nil).Level(zerolog.DebugLevel), m, "/grpc.health.v1.Health/Check", nil)
	if entry != nil {
		t.Errorf("expected no debug log for a health probe, got %v", entry)
	}

	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	entry = callUnary(t, zerolog.New(nil).Level(zerolog.TraceLevel), m, "/grpc.health.v1.Health/Check", nil)
	if entry == nil || entry["level"] != "trace" {
		t.Errorf("expected trace log for a health probe, got %v", entry)
	}

	got := testutil.ToFloat64(m.GRPCCalls.WithLabelValues("/grpc.health.v1.Health/Check", "OK"))
	if got != 2 {
		t.Errorf("expected 2 recorded health checks, got %v", got)
	}
}

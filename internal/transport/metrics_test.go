package transport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/salehnevergiveup/marketplace-sdk/internal/session"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/logger"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/testutil"
)

func TestMetrics_RecordsRequestsAndRefreshes(t *testing.T) {
	b := testutil.NewFakeBackend()
	defer b.Close()
	b.SetRefreshToken(testutil.MakeToken("u", "buyer", time.Now().Add(time.Hour), nil))

	calls := 0
	b.Handle(http.MethodGet, "/shoppingcart", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			testutil.WriteFailure(w, http.StatusUnauthorized, "expired")
			return
		}
		testutil.WriteSuccess(w, nil)
	})

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	sess := session.New()
	sess.SetToken(testutil.MakeToken("u", "buyer", time.Now().Add(time.Hour), nil))
	c := NewClient(sess, Config{
		AuthBaseURL:   b.AuthBaseURL(),
		PublicBaseURL: b.PublicBaseURL(),
		Metrics:       metrics,
		Logger:        logger.NewNop(),
	})

	resp := c.Send(context.Background(), Request{Method: http.MethodGet, Path: "shoppingcart", RequiresAuth: true})
	if !resp.Success {
		t.Fatalf("call failed: %s", resp.Message)
	}

	if got := promtestutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, "auth", "200")); got != 1 {
		t.Errorf("requests{auth,200} = %f, want 1", got)
	}
	if got := promtestutil.ToFloat64(metrics.refreshes.WithLabelValues("success")); got != 1 {
		t.Errorf("refreshes{success} = %f, want 1", got)
	}
	if got := promtestutil.ToFloat64(metrics.inFlight); got != 0 {
		t.Errorf("in-flight gauge = %f, want 0 after completion", got)
	}
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	is := is.New(t)
	m := New()

	m.ObserveTransition("approved", "ok")
	m.ObserveTransition("approved", "ok")
	m.ObserveSubmission("error")
	m.SetOutboxPending(3)

	is.Equal(testutil.ToFloat64(m.Transitions.WithLabelValues("approved", "ok")), float64(2))
	is.Equal(testutil.ToFloat64(m.Submissions.WithLabelValues("error")), float64(1))
	is.Equal(testutil.ToFloat64(m.OutboxPending), float64(3))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveTransition("approved", "ok")
	m.ObserveSubmission("ok")
	m.ObserveOutbox("k", "ok")
	m.SetOutboxPending(1)
	m.ObserveRequest("GET", "/", "200", 0.1)
}

func TestHandler(t *testing.T) {
	is := is.New(t)
	m := New()
	m.ObserveRequest("GET", "/api/challenges", "200", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	is.Equal(rec.Code, 200)

	body, err := io.ReadAll(rec.Body)
	is.NoErr(err)
	is.True(strings.Contains(string(body), "challenge_hub_http_requests_total"))
}

package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProbe is a configurable health probe for tests.
type stubProbe struct {
	name  string
	err   error
	delay time.Duration
}

func (p *stubProbe) Name() string { return p.name }

func (p *stubProbe) Check(ctx context.Context) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func doHealth(t *testing.T, srv *Server) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rr
}

func TestHandleHealth_NoProbes(t *testing.T) {
	srv := newTestServer(t)

	rr := doHealth(t, srv)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	srv := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		&stubProbe{name: "database"},
	}

	rr := doHealth(t, srv)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status     string `json:"status"`
		Components map[string]struct {
			Status string `json:"status"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["database"].Status)
}

func TestHandleHealth_UnhealthyProbe(t *testing.T) {
	srv := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		&stubProbe{name: "database", err: errors.New("connection refused")},
	}

	rr := doHealth(t, srv)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp struct {
		Status     string `json:"status"`
		Components map[string]struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "connection refused", resp.Components["database"].Message)
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	srv := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		&panicProbe{},
	}

	rr := doHealth(t, srv)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

type panicProbe struct{}

func (p *panicProbe) Name() string                { return "flaky" }
func (p *panicProbe) Check(context.Context) error { panic("probe exploded") }

package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesDeployMetrics(t *testing.T) {
	RecordDeploy("netlify", 150*time.Millisecond, true)
	RecordDeployPhaseFailure("render", "uploading")
	RecordCommand(time.Second, false)
	RecordLicenseVerification("active")
	RecordGatewayRequest("deployTo", 200, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `deploy_total{status="success",target="netlify"}`)
	assert.Contains(t, body, `deploy_phase_failures_total{phase="uploading",target="render"}`)
	assert.Contains(t, body, `license_verification_total{reason="active"}`)
	assert.Contains(t, body, `gateway_requests_total{channel="deployTo",code="200"}`)
}

func TestAuditLoggerRecord(t *testing.T) {
	var buf bytes.Buffer
	SetAuditLogger(zerolog.New(&buf))

	RecordDeployAudit(context.Background(), "vercel", "site-1", "success", map[string]interface{}{"url": "https://x.vercel.app"})

	out := buf.String()
	assert.Contains(t, out, `"action":"deploy:vercel"`)
	assert.Contains(t, out, `"actor":"site-1"`)
	assert.Contains(t, out, `"status":"success"`)
	assert.Contains(t, out, "https://x.vercel.app")
}

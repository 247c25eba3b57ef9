package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.RecordSubmission("attempt", SubmissionAccepted)
	m.RecordSubmission("attempt", SubmissionRejected)
	m.RecordSubmission("mentor", SubmissionAccepted)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/system/status", http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/system/status", http.StatusOK, 30*time.Millisecond)
	m.RecordBackup(2*time.Second, nil)
	m.RecordBackup(0, errors.New("disk full"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Submissions)
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.0001)
	assert.Equal(t, uint64(1), snap.BackupsCompleted)
	assert.Equal(t, uint64(1), snap.BackupsFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("attempt", SubmissionRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backupRuns.WithLabelValues(SubmissionFailed)))
}

func TestMetricsServiceHandlerExposesNamespace(t *testing.T) {
	m := NewMetricsService()
	m.RecordSubmission("school", SubmissionAccepted)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `practicum_submissions_total{kind="school",outcome="accepted"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordSubmission("attempt", SubmissionAccepted)
	m.RecordBackup(time.Second, nil)

	assert.Equal(t, uint64(0), m.Snapshot().Submissions)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

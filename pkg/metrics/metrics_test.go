package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/recordfile/pkg/codec"
	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

func TestNew_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()
	a.RecordWritten(10)

	assert.Equal(t, float64(1), testutil.ToFloat64(a.recordsWritten))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.recordsWritten))
}

func TestObserver_WithWriterAndReader(t *testing.T) {
	m := New()

	var buf bytes.Buffer
	w, err := recordio.NewWriter(&buf, recordio.WithObserver(m))
	require.NoError(t, err)
	require.NoError(t, w.Write([]byte("hello")))
	require.NoError(t, w.Write([]byte("world!")))
	require.NoError(t, w.Close())

	assert.Equal(t, float64(2), testutil.ToFloat64(m.recordsWritten))
	assert.Equal(t, float64(11), testutil.ToFloat64(m.bytesWritten))

	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	r, err := recordio.NewReader(bytes.NewReader(data), recordio.WithObserver(m))
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordsRead))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.bytesRead))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordFailures.WithLabelValues("read", KindCorruptPayload)))
}

func TestFailureKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&recordio.FrameError{Err: codec.ErrCorruptLength}, KindCorruptLength},
		{&recordio.FrameError{Err: codec.ErrCorruptPayload}, KindCorruptPayload},
		{fmt.Errorf("x: %w", recordio.ErrTruncated), KindTruncated},
		{recordio.ErrRecordTooLarge, KindTooLarge},
		{fmt.Errorf("decode: %w", feature.ErrMalformedPayload), KindMalformed},
		{&recordio.IOError{Op: "write", Err: io.ErrShortWrite}, KindIO},
		{errors.New("mystery"), KindOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FailureKind(tc.err), tc.err.Error())
	}
}

func TestRecordOperation(t *testing.T) {
	m := New()
	m.RecordOperation("verify", true, 10*time.Millisecond)
	m.RecordOperation("verify", false, 5*time.Millisecond)
	m.RecordOperation("index", true, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.operationsTotal.WithLabelValues("verify", statusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operationsTotal.WithLabelValues("verify", statusError)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.operationDuration))
}

func TestUpdateDataStats(t *testing.T) {
	m := New()
	m.UpdateDataStats(3, 4096)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.filesTotal))
	assert.Equal(t, float64(4096), testutil.ToFloat64(m.dataSizeBytes))
}

func TestInstrumentHandler(t *testing.T) {
	m := New()
	h := m.InstrumentHandler("GET", "/api/v1/files", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/v1/files", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/files", "418")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.httpRequestsInFlight.WithLabelValues("GET", "/api/v1/files")))
}

func TestInstrumentAuthMiddleware(t *testing.T) {
	m := New()
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != "good" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := m.InstrumentAuthMiddleware(deny)(ok)

	for _, key := range []string{"good", "bad", ""} {
		req := httptest.NewRequest("GET", "/", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.authRequestsTotal.WithLabelValues(statusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.authRequestsTotal.WithLabelValues(statusError)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHealthCheck(true)
	m.RecordWritten(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "recordfile_records_written_total 1")
	assert.Contains(t, body, `recordfile_health_checks_total{status="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

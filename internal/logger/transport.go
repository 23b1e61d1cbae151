package logger

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxTracedBody = 4096

// TracingTransport logs every HTTP round trip, including the raw response body at debug level.
type TracingTransport struct {
	Base http.RoundTripper
	Log  *zap.Logger
}

// NewTracingTransport wraps base; a nil base uses http.DefaultTransport.
func NewTracingTransport(base http.RoundTripper, log *zap.Logger) *TracingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &TracingTransport{Base: base, Log: log}
}

func (t *TracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Base.RoundTrip(req)
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		t.Log.Debug("http request failed", append(fields, zap.Error(err))...)
		return resp, err
	}
	fields = append(fields, zap.Int("status", resp.StatusCode))
	if t.Log.Core().Enabled(zapcore.DebugLevel) && resp.Body != nil {
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if readErr != nil {
			fields = append(fields, zap.NamedError("body_error", readErr))
		}
		fields = append(fields, zap.String("body", Truncate(string(body), maxTracedBody)))
	}
	t.Log.Debug("http request", fields...)
	return resp, nil
}

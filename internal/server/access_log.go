package server

import (
	"context"
	"net/http"
	"time"
)

// accessRecord collects what the access log reports about one request.
// Handlers attach pipeline fields to it with annotate.
type accessRecord struct {
	http.ResponseWriter
	status int
	bytes  int64
	fields []any
}

func (w *accessRecord) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *accessRecord) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *accessRecord) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *accessRecord) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

type accessRecordKey struct{}

// annotate adds key/value pairs to the access log line of the request
// carried by ctx. It is a no-op outside withAccessLog.
func annotate(ctx context.Context, fields ...any) {
	if rec, ok := ctx.Value(accessRecordKey{}).(*accessRecord); ok {
		rec.fields = append(rec.fields, fields...)
	}
}

// withAccessLog writes one line per request. Failed requests log at error,
// stored uploads at info, everything else at debug.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &accessRecord{ResponseWriter: w}
		r = r.WithContext(context.WithValue(r.Context(), accessRecordKey{}, rec))
		next.ServeHTTP(rec, r)

		status := rec.Status()
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", requestClientIP(r),
			"request_id", requestIDFrom(r.Context()),
		}
		if r.Pattern != "" {
			fields = append(fields, "route", r.Pattern)
		}
		fields = append(fields, rec.fields...)

		switch {
		case status >= 500:
			s.log().Error("request complete", fields...)
		case r.Pattern == "POST /upload" && status == http.StatusOK:
			s.log().Info("upload stored", fields...)
		default:
			s.log().Debug("request complete", fields...)
		}
	})
}

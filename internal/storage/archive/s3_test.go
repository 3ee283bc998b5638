package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestS3Storage_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "file.json", "file.json"},
		{"perf", "file.json", "perf/file.json"},
		{"perf/", "file.json", "perf/file.json"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: strings.TrimSuffix(tt.prefix, "/")}
		got := s.key(tt.path)
		if got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

// fakeS3 answers path-style GET and HEAD for a single stored object.
func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		found := r.URL.Path == "/perf-bucket/perf/performance_summary.json"
		switch {
		case found && r.Method == http.MethodHead:
			w.Header().Set("Content-Length", "2")
			w.WriteHeader(http.StatusOK)
		case found && r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("{}"))
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3Storage_ReadAndExists(t *testing.T) {
	srv := fakeS3(t)
	st, err := NewS3(S3Config{
		Bucket:    "perf-bucket",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    "perf/",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	ctx := context.Background()

	data, err := st.Read(ctx, "performance_summary.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("Read() = %q", data)
	}

	if _, err := st.Read(ctx, "signals_log.json"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Read(missing) error = %v, want ErrNotExist", err)
	}

	exists, err := st.Exists(ctx, "performance_summary.json")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v", exists, err)
	}
	exists, err = st.Exists(ctx, "signals_log.json")
	if err != nil || exists {
		t.Errorf("Exists(missing) = %v, %v", exists, err)
	}
}

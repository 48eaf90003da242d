package perf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPerfMapFormat(t *testing.T) {
	var buf bytes.Buffer
	p := NewPerfMap(&buf)
	if err := p.Register(0x7f0000001000, 0x1a40, "VIF Unpack"); err != nil {
		t.Fatal(err)
	}
	if err := p.Register(0x7f0000001000, 48, "VIF Unpack S-32"); err != nil {
		t.Fatal(err)
	}
	want := "7f0000001000 1a40 VIF Unpack\n7f0000001000 30 VIF Unpack S-32\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
	if err := p.Register(0x1000, 0, "empty"); err == nil {
		t.Error("expected error for empty range")
	}
}

func TestOpenPerfMapAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf-1.map")
	for i := 0; i < 2; i++ {
		p, err := OpenPerfMap(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Register(0x1000, 16, "x"); err != nil {
			t.Fatal(err)
		}
		if err := p.Close(); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("got %d lines, want 2: %q", n, data)
	}
}

func TestDefaultPerfMapPath(t *testing.T) {
	if !strings.HasPrefix(filepath.Base(DefaultPerfMapPath()), "perf-") {
		t.Errorf("unexpected path %q", DefaultPerfMapPath())
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Register(0x1000, 4096, "VIF Unpack"); err != nil {
		t.Fatal(err)
	}
	m.ObserveBuild("neon", 208, time.Millisecond)

	if got := testutil.ToFloat64(m.codeBytes.WithLabelValues("VIF Unpack")); got != 4096 {
		t.Errorf("code_bytes: got %v, want 4096", got)
	}
	if got := testutil.ToFloat64(m.registrations.WithLabelValues("VIF Unpack")); got != 1 {
		t.Errorf("registrations_total: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.handlers.WithLabelValues("neon")); got != 208 {
		t.Errorf("handlers: got %v, want 208", got)
	}
	if n := testutil.CollectAndCount(m.buildDuration); n != 1 {
		t.Errorf("build_duration_seconds: got %d series, want 1", n)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Error("registering twice should fail")
	}
}

type failingSink struct{ err error }

func (f failingSink) Register(uintptr, int, string) error { return f.err }

type recordingSink struct {
	labels []string
	builds int
}

func (r *recordingSink) Register(_ uintptr, _ int, label string) error {
	r.labels = append(r.labels, label)
	return nil
}

func (r *recordingSink) ObserveBuild(string, int, time.Duration) { r.builds++ }

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	rec := &recordingSink{}
	m := Multi{failingSink{boom}, rec, Discard}

	err := m.Register(0x1000, 16, "a")
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if len(rec.labels) != 1 || rec.labels[0] != "a" {
		t.Errorf("later sinks not called after failure: %v", rec.labels)
	}

	m.ObserveBuild("sse2", 208, time.Second)
	if rec.builds != 1 {
		t.Errorf("ObserveBuild forwarded %d times, want 1", rec.builds)
	}
}

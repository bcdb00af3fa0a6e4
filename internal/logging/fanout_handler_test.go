package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsEachLevel(t *testing.T) {
	var global, project bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&global, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&project, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected fanout enabled when any handler accepts info")
	}

	slog.New(h).Info("segment exported")
	if global.Len() != 0 {
		t.Fatalf("expected warn-level handler to skip info, got %q", global.String())
	}
	if project.Len() == 0 {
		t.Fatal("expected info-level handler to receive the record")
	}
}

func TestTeeLoggerCarriesAttrs(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))
	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil)).With(slog.String(FieldProject, "family"))

	logger.Info("ingest completed")

	for name, buf := range map[string]*bytes.Buffer{"base": &baseBuf, "tee": &teeBuf} {
		if !bytes.Contains(buf.Bytes(), []byte(`"project":"family"`)) {
			t.Fatalf("expected project attr in %s output, got %q", name, buf.String())
		}
	}
}

package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/ela/internal/config"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: config.LogLevelWarn}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	logger.Info("hidden")
	logger.Warn("shown", "code", "DivideByZero")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record passed a warn level:\n%s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "code=DivideByZero") {
		t.Errorf("missing warn record:\n%s", out)
	}

	logger.Level.Set(slog.LevelDebug)
	logger.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("level change not applied")
	}
}

func TestFileFanout(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "ela.log")
	logger, err := New(config.LogConfig{Level: config.LogLevelInfo, File: path}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := WithUnit(context.Background(), "squares.square")
	logger.With("worker", "w1").InfoContext(ctx, "unit done")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.Contains(buf.String(), "unit=squares.square") {
		t.Errorf("terminal record lacks unit:\n%s", buf.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("file record is not JSON: %v\n%s", err, data)
	}
	if rec["msg"] != "unit done" || rec["worker"] != "w1" || rec["unit"] != "squares.square" {
		t.Errorf("file record = %v", rec)
	}
}

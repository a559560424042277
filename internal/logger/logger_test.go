package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestEventsCarryComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.DebugLevel)
	l.Info("hough", "voted", Fields{"cells": 12})

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("not JSON: %v (%s)", err, buf.String())
	}
	if got["component"] != "hough" || got["message"] != "voted" || got["cells"] != float64(12) {
		t.Errorf("unexpected event %v", got)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.WarnLevel)
	l.Debug("x", "hidden", nil)
	l.Info("x", "hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %s", buf.String())
	}
	l.Error("x", errors.New("boom"), nil)
	if !bytes.Contains(buf.Bytes(), []byte("boom")) {
		t.Errorf("error not logged: %s", buf.String())
	}
}

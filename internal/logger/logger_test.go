package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

// TestSetup_OutputsJSON はJSON構造化ログが出力されることを検証する。
func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf)

	log.Info("同期が完了しました", "platform", "instagram", "posts_count", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "同期が完了しました" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["platform"] != "instagram" {
		t.Errorf("platform = %v", entry["platform"])
	}
}

// TestSetup_FiltersDebugLevel はInfoレベル未満のログが出力されないことを検証する。
func TestSetup_FiltersDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf)

	log.Debug("debug message")

	if buf.Len() != 0 {
		t.Errorf("debug log was written: %s", buf.String())
	}
}

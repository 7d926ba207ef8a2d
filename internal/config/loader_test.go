package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nclamvn/teacherAI/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teacherai.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.FrontendURL != "http://localhost:3000" {
		t.Errorf("FrontendURL = %q", cfg.Server.FrontendURL)
	}
}

func TestLoad_InvalidFileNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q should name the file", err)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:   config.ServerConfig{ListenAddr: ":9999", LogLevel: config.LogDebug},
		Feedback: config.FeedbackConfig{VoiceEN: "echo"},
		Media:    config.MediaConfig{URLPrefix: "/clips"},
	}
	config.ApplyDefaults(cfg)

	if cfg.Server.ListenAddr != ":9999" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Feedback.VoiceEN != "echo" || cfg.Feedback.VoiceVI != config.DefaultVoiceVI {
		t.Errorf("voices = %q/%q", cfg.Feedback.VoiceEN, cfg.Feedback.VoiceVI)
	}
	if cfg.Media.URLPrefix != "/clips" || cfg.Media.Dir != config.DefaultMediaDir {
		t.Errorf("media = %+v", cfg.Media)
	}
	if cfg.Server.ShutdownTimeout != config.DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
}

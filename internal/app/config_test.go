package app

import (
	"testing"
	"time"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ROLE", "api")
	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxUploadBytes != 40<<20 || cfg.UploadChunkBytes != 1<<20 {
		t.Fatalf("upload limits: %d/%d", cfg.MaxUploadBytes, cfg.UploadChunkBytes)
	}
	if len(cfg.AllowedAudioExtensions) != 2 || cfg.AllowedAudioExtensions[0] != ".mp3" {
		t.Fatalf("extensions: %v", cfg.AllowedAudioExtensions)
	}
	if cfg.CollaboratorTimeout != 2*time.Minute {
		t.Fatalf("collaborator timeout: %s", cfg.CollaboratorTimeout)
	}
	if cfg.BlobBackend != BlobBackendLocal || cfg.QueueBackend != "db" || cfg.STTProvider != "openai" {
		t.Fatalf("backends: %s/%s/%s", cfg.BlobBackend, cfg.QueueBackend, cfg.STTProvider)
	}
	if !cfg.Role.ServesHTTP() || cfg.Role.RunsWorkers() {
		t.Fatalf("api role: http=%v workers=%v", cfg.Role.ServesHTTP(), cfg.Role.RunsWorkers())
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"unknown role", map[string]string{"APP_ROLE": "cron", "JWT_SECRET": "x", "OPENAI_API_KEY": "k"}},
		{"api without secret", map[string]string{"APP_ROLE": "api"}},
		{"worker without openai key", map[string]string{"APP_ROLE": "worker"}},
		{"unknown queue", map[string]string{"APP_ROLE": "api", "JWT_SECRET": "x", "QUEUE_BACKEND": "sqs"}},
		{"unknown stt", map[string]string{"APP_ROLE": "worker", "OPENAI_API_KEY": "k", "STT_PROVIDER": "vosk"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"APP_ROLE", "JWT_SECRET", "OPENAI_API_KEY", "QUEUE_BACKEND", "STT_PROVIDER"} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(logger.Nop()); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLanguageTag(t *testing.T) {
	for in, want := range map[string]string{"ko-KR": "ko", "en_US": "en", "ja": "ja", "": ""} {
		if got := languageTag(in); got != want {
			t.Fatalf("languageTag(%q)=%q want %q", in, got, want)
		}
	}
}

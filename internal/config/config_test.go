package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 5000 {
		t.Fatalf("expected default port 5000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.MaxUploadBytes != 50*1024*1024 {
		t.Fatalf("expected 50MiB upload cap, got %d", cfg.HTTP.MaxUploadBytes)
	}
	if cfg.Audio.TargetSampleRate != 16000 {
		t.Fatalf("expected 16000 Hz target, got %d", cfg.Audio.TargetSampleRate)
	}
	if cfg.Model.Device != "cpu" {
		t.Fatalf("expected cpu device, got %s", cfg.Model.Device)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WHISPERD_HTTP_PORT", "8080")
	t.Setenv("WHISPERD_HTTP_MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("WHISPERD_MODEL_NAME", "openai/whisper-base")
	t.Setenv("WHISPERD_MODEL_MODE", "exec")
	t.Setenv("WHISPERD_MODEL_COMMAND", "whisper-cli --json")
	t.Setenv("WHISPERD_AUDIO_FFMPEG_TIMEOUT_SECONDS", "10")
	t.Setenv("WHISPERD_STORE_RETENTION_MODE", "ephemeral")
	t.Setenv("WHISPERD_EVENTS_ENABLED", "true")
	t.Setenv("WHISPERD_EVENTS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.MaxUploadBytes != 1048576 {
		t.Fatalf("expected upload cap override, got %d", cfg.HTTP.MaxUploadBytes)
	}
	if cfg.Model.Name != "openai/whisper-base" {
		t.Fatalf("expected model name override, got %s", cfg.Model.Name)
	}
	if cfg.Model.Mode != "exec" || cfg.Model.Command != "whisper-cli --json" {
		t.Fatalf("expected exec mode override, got %s / %q", cfg.Model.Mode, cfg.Model.Command)
	}
	if cfg.Audio.FFmpegTimeoutSeconds != 10 {
		t.Fatalf("expected ffmpeg timeout override, got %d", cfg.Audio.FFmpegTimeoutSeconds)
	}
	if cfg.Store.RetentionMode != "ephemeral" {
		t.Fatalf("expected retention override, got %s", cfg.Store.RetentionMode)
	}
	if !cfg.Events.Enabled || len(cfg.Events.Servers) != 2 {
		t.Fatalf("expected events override, got %+v", cfg.Events)
	}
}

func TestUseGPUSelectsCuda(t *testing.T) {
	t.Setenv("WHISPERD_USE_GPU", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.Device != "cuda" {
		t.Fatalf("expected cuda device, got %s", cfg.Model.Device)
	}
}

func TestExplicitDeviceWinsOverUseGPU(t *testing.T) {
	t.Setenv("WHISPERD_USE_GPU", "true")
	t.Setenv("WHISPERD_MODEL_DEVICE", "cpu")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.Device != "cpu" {
		t.Fatalf("expected explicit cpu device, got %s", cfg.Model.Device)
	}
}

func TestValidateRejectsExecWithoutCommand(t *testing.T) {
	t.Setenv("WHISPERD_MODEL_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for exec mode without command")
	}
}

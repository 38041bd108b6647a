package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind           string `yaml:"bind"`
	Port           int    `yaml:"port"`
	Debug          bool   `yaml:"debug"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type ModelConfig struct {
	Name      string `yaml:"name"`
	Device    string `yaml:"device"`
	Mode      string `yaml:"mode"` // mock, exec
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type AudioConfig struct {
	TargetSampleRate     int    `yaml:"target_sample_rate"`
	MaxDurationSeconds   int    `yaml:"max_duration_seconds"`
	FFmpegPath           string `yaml:"ffmpeg_path"`
	FFmpegTimeoutSeconds int    `yaml:"ffmpeg_timeout_seconds"`
}

type StagingConfig struct {
	Dir string `yaml:"dir"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type EventsConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Model       ModelConfig     `yaml:"model"`
	Audio       AudioConfig     `yaml:"audio"`
	Staging     StagingConfig   `yaml:"staging"`
	Store       StoreConfig     `yaml:"store"`
	Events      EventsConfig    `yaml:"events"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

func Default() Config {
	return Config{
		ServiceName: "whisperd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:           "0.0.0.0",
			Port:           5000,
			Debug:          false,
			MaxUploadBytes: 50 * 1024 * 1024,
		},
		Model: ModelConfig{
			Name:     "tarteel-ai/whisper-tiny-ar-quran",
			Device:   "cpu",
			Mode:     "mock",
			Language: "ar",
		},
		Audio: AudioConfig{
			TargetSampleRate:     16000,
			MaxDurationSeconds:   30,
			FFmpegPath:           "ffmpeg",
			FFmpegTimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Path:          "./data/transcripts.db",
			RetentionMode: "persistent",
			RetentionDays: 30,
		},
		Events: EventsConfig{
			Enabled:        false,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "WHISPERD_SERVICE_NAME")
	overrideString(&cfg.Environment, "WHISPERD_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "WHISPERD_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "WHISPERD_HTTP_PORT")
	overrideBool(&cfg.HTTP.Debug, "WHISPERD_HTTP_DEBUG")
	overrideInt64(&cfg.HTTP.MaxUploadBytes, "WHISPERD_HTTP_MAX_UPLOAD_BYTES")
	overrideString(&cfg.Model.Name, "WHISPERD_MODEL_NAME")
	overrideString(&cfg.Model.Device, "WHISPERD_MODEL_DEVICE")
	overrideString(&cfg.Model.Mode, "WHISPERD_MODEL_MODE")
	overrideString(&cfg.Model.Command, "WHISPERD_MODEL_COMMAND")
	overrideString(&cfg.Model.ModelPath, "WHISPERD_MODEL_PATH")
	overrideString(&cfg.Model.Language, "WHISPERD_MODEL_LANGUAGE")
	overrideInt(&cfg.Audio.TargetSampleRate, "WHISPERD_AUDIO_TARGET_SAMPLE_RATE")
	overrideInt(&cfg.Audio.MaxDurationSeconds, "WHISPERD_AUDIO_MAX_DURATION_SECONDS")
	overrideString(&cfg.Audio.FFmpegPath, "WHISPERD_AUDIO_FFMPEG_PATH")
	overrideInt(&cfg.Audio.FFmpegTimeoutSeconds, "WHISPERD_AUDIO_FFMPEG_TIMEOUT_SECONDS")
	overrideString(&cfg.Staging.Dir, "WHISPERD_STAGING_DIR")
	overrideString(&cfg.Store.Path, "WHISPERD_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "WHISPERD_STORE_RETENTION_MODE")
	overrideInt(&cfg.Store.RetentionDays, "WHISPERD_STORE_RETENTION_DAYS")
	overrideBool(&cfg.Store.VacuumOnStart, "WHISPERD_STORE_VACUUM_ON_START")
	overrideBool(&cfg.Events.Enabled, "WHISPERD_EVENTS_ENABLED")
	overrideStringSlice(&cfg.Events.Servers, "WHISPERD_EVENTS_SERVERS")
	overrideString(&cfg.Events.Username, "WHISPERD_EVENTS_USERNAME")
	overrideString(&cfg.Events.Password, "WHISPERD_EVENTS_PASSWORD")
	overrideString(&cfg.Events.Token, "WHISPERD_EVENTS_TOKEN")
	overrideBool(&cfg.Events.TLSInsecure, "WHISPERD_EVENTS_TLS_INSECURE")
	overrideInt(&cfg.Events.ConnectTimeout, "WHISPERD_EVENTS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Telemetry.LogLevel, "WHISPERD_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "WHISPERD_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "WHISPERD_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "WHISPERD_TELEMETRY_PROMETHEUS_BIND")

	// WHISPERD_USE_GPU=true selects cuda unless a device was set explicitly.
	if value, ok := os.LookupEnv("WHISPERD_USE_GPU"); ok {
		if parsed, err := strconv.ParseBool(value); err == nil && parsed {
			if _, explicit := os.LookupEnv("WHISPERD_MODEL_DEVICE"); !explicit {
				cfg.Model.Device = "cuda"
			}
		}
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.max_upload_bytes must be positive")
	}
	if cfg.Model.Name == "" {
		return errors.New("model.name must not be empty")
	}
	switch cfg.Model.Mode {
	case "mock", "exec":
	default:
		return errors.New("model.mode must be one of mock|exec")
	}
	if cfg.Model.Mode == "exec" && cfg.Model.Command == "" {
		return errors.New("model.command must be set when mode=exec")
	}
	if cfg.Audio.TargetSampleRate <= 0 {
		return errors.New("audio.target_sample_rate must be positive")
	}
	if cfg.Audio.MaxDurationSeconds <= 0 {
		return errors.New("audio.max_duration_seconds must be positive")
	}
	if cfg.Audio.FFmpegTimeoutSeconds <= 0 {
		return errors.New("audio.ffmpeg_timeout_seconds must be positive")
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return errors.New("store.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.Store.RetentionMode == "persistent" && cfg.Store.Path == "" {
		return errors.New("store.path must not be empty when retention is persistent")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Events.Enabled && len(cfg.Events.Servers) == 0 {
		return errors.New("events.servers must not be empty when events are enabled")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}

// FFmpegTimeout returns the conversion timeout as a time.Duration.
func (a AudioConfig) FFmpegTimeout() time.Duration {
	return time.Duration(a.FFmpegTimeoutSeconds) * time.Second
}

// MaxDuration returns the advisory audio length ceiling as a time.Duration.
func (a AudioConfig) MaxDuration() time.Duration {
	return time.Duration(a.MaxDurationSeconds) * time.Second
}

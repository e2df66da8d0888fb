package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Node        NodeConfig      `yaml:"node"`
	History     HistoryConfig   `yaml:"history"`
	Units       UnitsConfig     `yaml:"units"`
	Lexicon     LexiconConfig   `yaml:"lexicon"`
	Synth       SynthConfig     `yaml:"synth"`
	TTS         TTSConfig       `yaml:"tts"`
	Playback    PlaybackConfig  `yaml:"playback"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type NodeConfig struct {
	ID                string `yaml:"id"`
	Role              string `yaml:"role"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

// HistoryConfig controls the sqlite log of synthesis requests.
type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"` // ephemeral, persistent
	RetentionDays int    `yaml:"retention_days"`
	MaxEntries    int    `yaml:"max_entries"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// UnitsConfig points at the diphone recording library.
type UnitsConfig struct {
	Directory  string `yaml:"directory"`
	SampleRate int    `yaml:"sample_rate"`
}

// LexiconConfig points at a CMU-format pronouncing dictionary.
type LexiconConfig struct {
	Path string `yaml:"path"`
}

// SynthConfig holds per-request defaults; requests may override them.
type SynthConfig struct {
	Crossfade   bool `yaml:"crossfade"`
	CrossfadeMS int  `yaml:"crossfade_ms"`
	Volume      int  `yaml:"volume"`
}

type TTSConfig struct {
	Enabled          bool `yaml:"enabled"`
	ChunkDurationMS  int  `yaml:"chunk_duration_ms"`
	RequestTimeoutMS int  `yaml:"request_timeout_ms"`
}

type PlaybackConfig struct {
	Mode            string `yaml:"mode"` // none, exec, portaudio
	Command         string `yaml:"command"`
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
}

func Default() Config {
	return Config{
		RuntimeName: "diphone-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Host:           "127.0.0.1",
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Node: NodeConfig{
			ID:                "diphone-node-1",
			Role:              "tts",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
		History: HistoryConfig{
			Path:          "./data/diphone-history.db",
			RetentionMode: "persistent",
			RetentionDays: 30,
			MaxEntries:    10000,
		},
		Units: UnitsConfig{
			Directory:  "./diphones",
			SampleRate: 16000,
		},
		Lexicon: LexiconConfig{
			Path: "./cmudict.dict",
		},
		Synth: SynthConfig{
			Crossfade:   false,
			CrossfadeMS: 10,
			Volume:      100,
		},
		TTS: TTSConfig{
			Enabled:          true,
			ChunkDurationMS:  400,
			RequestTimeoutMS: 10000,
		},
		Playback: PlaybackConfig{
			Mode:            "exec",
			Command:         "aplay -q -",
			FramesPerBuffer: 1024,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, an optional dotenv file and DIPHONE_* environment variables, in that
// order of precedence (later wins).
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

	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadDotEnv reads DIPHONE_ENV_FILE (default ".env") into the process
// environment without replacing variables that are already set.
func loadDotEnv() error {
	file := ".env"
	if v := strings.TrimSpace(os.Getenv("DIPHONE_ENV_FILE")); v != "" {
		file = v
	}
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", file, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "DIPHONE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "DIPHONE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "DIPHONE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "DIPHONE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "DIPHONE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "DIPHONE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "DIPHONE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "DIPHONE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "DIPHONE_BUS_EMBEDDED")
	overrideString(&cfg.Bus.Host, "DIPHONE_BUS_HOST")
	overrideInt(&cfg.Bus.Port, "DIPHONE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "DIPHONE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "DIPHONE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "DIPHONE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "DIPHONE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "DIPHONE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "DIPHONE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Node.ID, "DIPHONE_NODE_ID")
	overrideString(&cfg.Node.Role, "DIPHONE_NODE_ROLE")
	overrideInt(&cfg.Node.HeartbeatInterval, "DIPHONE_NODE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Node.HeartbeatTimeout, "DIPHONE_NODE_HEARTBEAT_TIMEOUT_MS")
	overrideString(&cfg.History.Path, "DIPHONE_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "DIPHONE_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "DIPHONE_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxEntries, "DIPHONE_HISTORY_MAX_ENTRIES")
	overrideBool(&cfg.History.VacuumOnStart, "DIPHONE_HISTORY_VACUUM_ON_START")
	overrideString(&cfg.Units.Directory, "DIPHONE_UNITS_DIRECTORY")
	overrideInt(&cfg.Units.SampleRate, "DIPHONE_UNITS_SAMPLE_RATE")
	overrideString(&cfg.Lexicon.Path, "DIPHONE_LEXICON_PATH")
	overrideBool(&cfg.Synth.Crossfade, "DIPHONE_SYNTH_CROSSFADE")
	overrideInt(&cfg.Synth.CrossfadeMS, "DIPHONE_SYNTH_CROSSFADE_MS")
	overrideInt(&cfg.Synth.Volume, "DIPHONE_SYNTH_VOLUME")
	overrideBool(&cfg.TTS.Enabled, "DIPHONE_TTS_ENABLED")
	overrideInt(&cfg.TTS.ChunkDurationMS, "DIPHONE_TTS_CHUNK_DURATION_MS")
	overrideInt(&cfg.TTS.RequestTimeoutMS, "DIPHONE_TTS_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.Playback.Mode, "DIPHONE_PLAYBACK_MODE")
	overrideString(&cfg.Playback.Command, "DIPHONE_PLAYBACK_COMMAND")
	overrideInt(&cfg.Playback.FramesPerBuffer, "DIPHONE_PLAYBACK_FRAMES_PER_BUFFER")
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
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Node.ID == "" {
		return errors.New("node.id must not be empty")
	}
	if cfg.Node.HeartbeatInterval <= 0 {
		return errors.New("node.heartbeat_interval_ms must be positive")
	}
	if cfg.Node.HeartbeatTimeout <= cfg.Node.HeartbeatInterval {
		return errors.New("node.heartbeat_timeout_ms must be greater than heartbeat interval")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral":
	case "persistent":
		if cfg.History.Path == "" {
			return errors.New("history.path must not be empty when retention_mode=persistent")
		}
	default:
		return errors.New("history.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Units.SampleRate <= 0 {
		return errors.New("units.sample_rate must be positive")
	}
	if cfg.Synth.CrossfadeMS < 0 {
		return errors.New("synth.crossfade_ms must be >= 0")
	}
	if cfg.Synth.Volume < 0 || cfg.Synth.Volume > 100 {
		return errors.New("synth.volume must be between 0 and 100")
	}
	if cfg.TTS.Enabled {
		if cfg.TTS.ChunkDurationMS <= 0 {
			return errors.New("tts.chunk_duration_ms must be positive")
		}
		if cfg.TTS.RequestTimeoutMS <= 0 {
			return errors.New("tts.request_timeout_ms must be positive")
		}
	}
	switch cfg.Playback.Mode {
	case "none", "portaudio":
	case "exec":
		if strings.TrimSpace(cfg.Playback.Command) == "" {
			return errors.New("playback.command must be set when mode=exec")
		}
	default:
		return errors.New("playback.mode must be one of none|exec|portaudio")
	}
	return nil
}

// CrossfadeSamples converts the configured crossfade window to samples at
// the unit sample rate.
func (c SynthConfig) CrossfadeSamples(sampleRate int) int {
	return sampleRate * c.CrossfadeMS / 1000
}

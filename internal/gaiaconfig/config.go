// Package gaiaconfig implements GAIA's three-layer configuration:
// defaults, then environment variables, then functional options, in
// that priority order, the same layering and struct-tag convention
// (`env`, `default`) the framework this project grew out of uses for
// every service's Config. The tags document each field's variable and
// default; applyDefaults and applyEnv set values explicitly, and
// applyEnv reads only a subset of the tagged variables.
// DetectKubernetes drives the Kubernetes-vs-local default switch.
package gaiaconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
)

// Config holds every tunable for a GAIA service binary. Individual
// cmd/ entrypoints only read the sections relevant to them (gaia-web
// reads HTTP+Fabric, gaia-study reads Vector+Study, ...), but all services
// share one Config shape so env vars are documented once.
type Config struct {
	ServiceName string `json:"service_name" env:"GAIA_SERVICE_NAME" default:"gaia"`
	Namespace   string `json:"namespace" env:"GAIA_NAMESPACE" default:"default"`

	HTTP       HTTPConfig       `json:"http"`
	Redis      RedisConfig      `json:"redis"`
	Inference  InferenceConfig  `json:"inference"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	Resilience ResilienceConfig `json:"resilience"`
	Logging    LoggingConfig    `json:"logging"`
	Blueprint  BlueprintConfig  `json:"blueprint"`
	Vector     VectorConfig     `json:"vector"`
	Observer   ObserverConfig   `json:"observer"`
	Heartbeat  HeartbeatConfig  `json:"heartbeat"`
	Fabric     FabricConfig     `json:"fabric"`
	Study      StudyConfig      `json:"study"`
	Dev        DevConfig        `json:"dev"`
}

type HTTPConfig struct {
	Port            int           `json:"port" env:"GAIA_HTTP_PORT" default:"8080"`
	Address         string        `json:"address" env:"GAIA_HTTP_ADDRESS"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"GAIA_HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"GAIA_HTTP_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"GAIA_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL      string        `json:"url" env:"GAIA_REDIS_URL,REDIS_URL" default:"redis://localhost:6379/0"`
	PoolSize int           `json:"pool_size" env:"GAIA_REDIS_POOL_SIZE" default:"10"`
	Timeout  time.Duration `json:"timeout" env:"GAIA_REDIS_TIMEOUT" default:"5s"`
}

type InferenceConfig struct {
	Provider      string        `json:"provider" env:"GAIA_AI_PROVIDER" default:"openai"`
	APIKey        string        `json:"api_key" env:"GAIA_AI_API_KEY,OPENAI_API_KEY"`
	BaseURL       string        `json:"base_url" env:"GAIA_AI_BASE_URL"`
	Model         string        `json:"model" env:"GAIA_AI_MODEL" default:"gpt-4o-mini"`
	LiteModel     string        `json:"lite_model" env:"GAIA_AI_LITE_MODEL" default:"gpt-4o-mini"`
	Temperature   float32       `json:"temperature" env:"GAIA_AI_TEMPERATURE" default:"0.7"`
	MaxTokens     int           `json:"max_tokens" env:"GAIA_AI_MAX_TOKENS" default:"2000"`
	Timeout       time.Duration `json:"timeout" env:"GAIA_AI_TIMEOUT" default:"60s"`
	RetryAttempts int           `json:"retry_attempts" env:"GAIA_AI_RETRY_ATTEMPTS" default:"3"`
}

type TelemetryConfig struct {
	Enabled      bool    `json:"enabled" env:"GAIA_TELEMETRY_ENABLED" default:"false"`
	Endpoint     string  `json:"endpoint" env:"GAIA_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	SamplingRate float64 `json:"sampling_rate" env:"GAIA_TELEMETRY_SAMPLING_RATE" default:"1.0"`
	Insecure     bool    `json:"insecure" env:"GAIA_TELEMETRY_INSECURE" default:"true"`
}

type ResilienceConfig struct {
	CircuitBreakerThreshold int           `json:"circuit_breaker_threshold" env:"GAIA_CB_THRESHOLD" default:"5"`
	CircuitBreakerTimeout   time.Duration `json:"circuit_breaker_timeout" env:"GAIA_CB_TIMEOUT" default:"30s"`
	RetryMaxAttempts        int           `json:"retry_max_attempts" env:"GAIA_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialInterval    time.Duration `json:"retry_initial_interval" env:"GAIA_RETRY_INITIAL_INTERVAL" default:"200ms"`
	RetryMaxInterval        time.Duration `json:"retry_max_interval" env:"GAIA_RETRY_MAX_INTERVAL" default:"5s"`
}

type LoggingConfig struct {
	Level  string `json:"level" env:"GAIA_LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"GAIA_LOG_FORMAT" default:"json"`
}

type BlueprintConfig struct {
	Dir           string `json:"dir" env:"GAIA_BLUEPRINT_DIR" default:"/gaia/blueprints"`
	BootstrapMode bool   `json:"bootstrap_mode" env:"GAIA_BLUEPRINT_BOOTSTRAP" default:"false"`
}

type VectorConfig struct {
	KnowledgeDir   string `json:"knowledge_dir" env:"GAIA_KNOWLEDGE_DIR" default:"/knowledge"`
	StorePath      string `json:"store_path" env:"GAIA_VECTOR_STORE_PATH" default:"/vector_store"`
	EmbeddingModel string `json:"embedding_model" env:"GAIA_EMBEDDING_MODEL" default:"text-embedding-3-small"`
}

type ObserverConfig struct {
	Mode               string        `json:"mode" env:"GAIA_OBSERVER_MODE" default:"block"` // block | explain | warn
	MinInterval        time.Duration `json:"min_interval" env:"GAIA_OBSERVER_MIN_INTERVAL" default:"500ms"`
	GraceTokens        int           `json:"grace_tokens" env:"GAIA_OBSERVER_GRACE_TOKENS" default:"12"`
	GraceDelay         time.Duration `json:"grace_delay" env:"GAIA_OBSERVER_GRACE_SECONDS" default:"500ms"`
	MaxTokens          int           `json:"max_tokens" env:"GAIA_OBSERVER_MAX_TOKENS" default:"64"`
	TopP               float32       `json:"top_p" env:"GAIA_OBSERVER_TOP_P" default:"0.9"`
	KeywordRatioThresh float64       `json:"keyword_ratio_threshold" env:"GAIA_OBSERVER_KEYWORD_RATIO" default:"0.25"`
}

type HeartbeatConfig struct {
	IntervalSeconds           int  `json:"interval_seconds" env:"GAIA_HEARTBEAT_INTERVAL_SECONDS" default:"1200"`
	LiteJournalEnabled        bool `json:"lite_journal_enabled" env:"GAIA_LITE_JOURNAL_ENABLED" default:"true"`
	TemporalStateEnabled      bool `json:"temporal_state_enabled" env:"GAIA_TEMPORAL_STATE_ENABLED" default:"true"`
	TemporalInterviewEnabled  bool `json:"temporal_interview_enabled" env:"GAIA_TEMPORAL_INTERVIEW_ENABLED" default:"true"`
	BakeIntervalTicks         int  `json:"bake_interval_ticks" env:"GAIA_TEMPORAL_BAKE_INTERVAL_TICKS" default:"3"`
	InterviewIntervalTicks    int  `json:"interview_interval_ticks" env:"GAIA_TEMPORAL_INTERVIEW_INTERVAL_TICKS" default:"6"`
	SeedRevisitDays           int  `json:"seed_revisit_days" env:"GAIA_SEED_REVISIT_DAYS" default:"7"`
	SeedsDir                  string `json:"seeds_dir" env:"GAIA_HEARTBEAT_SEEDS_DIR" default:"/gaia/heartbeat/seeds"`
	TemporalStateDir          string `json:"temporal_state_dir" env:"GAIA_HEARTBEAT_TEMPORAL_DIR" default:"/gaia/heartbeat/temporal"`
}

type FabricConfig struct {
	CoreURL                  string        `json:"core_url" env:"GAIA_CORE_URL" default:"http://gaia-core:8080"`
	StudyURL                 string        `json:"study_url" env:"GAIA_STUDY_URL" default:"http://gaia-study:8080"`
	GPUCleanupThresholdMB    int           `json:"gpu_cleanup_threshold_mb" env:"GAIA_GPU_CLEANUP_THRESHOLD_MB" default:"500"`
	GPUCleanupPollInterval   time.Duration `json:"gpu_cleanup_poll_interval" env:"GAIA_GPU_CLEANUP_POLL_INTERVAL" default:"1s"`
	GPUCleanupTimeout        time.Duration `json:"gpu_cleanup_timeout" env:"GAIA_GPU_CLEANUP_TIMEOUT" default:"30s"`
	HTTPTimeout              time.Duration `json:"http_timeout" env:"GAIA_FABRIC_HTTP_TIMEOUT" default:"10s"`
	NotificationHistoryLimit int           `json:"notification_history_limit" env:"GAIA_NOTIFICATION_HISTORY_LIMIT" default:"100"`
}

type StudyConfig struct {
	MaxTrainingSamples int    `json:"max_training_samples" env:"GAIA_STUDY_MAX_SAMPLES" default:"500"`
	MaxDocSizeBytes    int    `json:"max_doc_size_bytes" env:"GAIA_STUDY_MAX_DOC_BYTES" default:"1048576"`
	MaxTrainingSteps   int    `json:"max_training_steps" env:"GAIA_STUDY_MAX_STEPS" default:"200"`
	AdapterDir         string `json:"adapter_dir" env:"GAIA_STUDY_ADAPTER_DIR" default:"/gaia/adapters"`
	GlobalAdapterLimit  int   `json:"global_adapter_limit" env:"GAIA_STUDY_ADAPTER_LIMIT_GLOBAL" default:"8"`
	UserAdapterLimit    int   `json:"user_adapter_limit" env:"GAIA_STUDY_ADAPTER_LIMIT_USER" default:"4"`
	SessionAdapterLimit int   `json:"session_adapter_limit" env:"GAIA_STUDY_ADAPTER_LIMIT_SESSION" default:"2"`
	// TrainerURL points at the external fine-tuning collaborator
	// (spec.md §1 treats training internals as out of scope); empty
	// disables POST /study/start until one is configured.
	TrainerURL string `json:"trainer_url" env:"GAIA_STUDY_TRAINER_URL"`
}

type DevConfig struct {
	Enabled      bool `json:"enabled" env:"GAIA_DEV_MODE" default:"false"`
	MockAI       bool `json:"mock_ai" env:"GAIA_MOCK_AI" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" env:"GAIA_PRETTY_LOGS" default:"false"`
}

// Option mutates a Config after defaults and environment have been
// applied; the highest-priority layer.
type Option func(*Config) error

func WithPort(port int) Option {
	return func(c *Config) error { c.HTTP.Port = port; return nil }
}

func WithServiceName(name string) Option {
	return func(c *Config) error { c.ServiceName = name; return nil }
}

func WithRedisURL(url string) Option {
	return func(c *Config) error { c.Redis.URL = url; return nil }
}

func WithInferenceAPIKey(key string) Option {
	return func(c *Config) error { c.Inference.APIKey = key; return nil }
}

func WithMockAI(enabled bool) Option {
	return func(c *Config) error { c.Dev.MockAI = enabled; return nil }
}

func WithBootstrapMode(enabled bool) Option {
	return func(c *Config) error { c.Blueprint.BootstrapMode = enabled; return nil }
}

// DetectKubernetes reports whether the process is running under
// Kubernetes, the same signal the framework uses to switch defaults.
func DetectKubernetes() bool {
	_, ok := os.LookupEnv("KUBERNETES_SERVICE_HOST")
	return ok
}

// Default returns a Config populated with struct-tag defaults,
// adjusted for the detected environment.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	if DetectKubernetes() {
		cfg.HTTP.Address = "0.0.0.0"
		cfg.Logging.Format = "json"
	} else {
		cfg.HTTP.Address = "localhost"
		if !DetectKubernetes() {
			cfg.Logging.Format = "text"
		}
	}
	return cfg
}

// Load builds a Config: defaults, then environment variables, then
// opts, validating the result before returning it.
func Load(opts ...Option) (*Config, error) {
	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, gaiaerr.New("gaiaconfig.Load", "config", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as a
// confusing failure deep inside a dependent package.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return gaiaerr.New("Config.Validate", "config",
			fmt.Errorf("%w: port out of range (%d)", gaiaerr.ErrInvalidConfiguration, c.HTTP.Port))
	}
	if c.ServiceName == "" {
		return gaiaerr.New("Config.Validate", "config",
			fmt.Errorf("%w: service name required", gaiaerr.ErrMissingConfiguration))
	}
	if !c.Dev.MockAI && c.Inference.APIKey == "" {
		return gaiaerr.New("Config.Validate", "config",
			fmt.Errorf("%w: inference api key required unless dev.mock_ai is set", gaiaerr.ErrMissingConfiguration))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return gaiaerr.New("Config.Validate", "config",
			fmt.Errorf("%w: telemetry endpoint required when telemetry is enabled", gaiaerr.ErrMissingConfiguration))
	}
	return nil
}

// LoadFromFile layers a JSON file's contents over the current Config.
// Only JSON is supported; YAML configuration files are handled
// upstream by the blueprint registry's own loader, not here.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return gaiaerr.New("Config.LoadFromFile", "config", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return gaiaerr.New("Config.LoadFromFile", "config", err)
	}
	return nil
}

// applyDefaults assigns every section its default values explicitly,
// without reflection over the struct tags, overwriting whatever the
// sections held. Mirrors the explicit per-section defaulting the
// framework's DefaultConfig used, adapted here to GAIA's own section set.
func applyDefaults(c *Config) {
	c.ServiceName = "gaia"
	c.Namespace = "default"
	c.HTTP = HTTPConfig{Port: 8080, ReadTimeout: 30 * time.Second, WriteTimeout: 60 * time.Second, ShutdownTimeout: 10 * time.Second}
	c.Redis = RedisConfig{URL: "redis://localhost:6379/0", PoolSize: 10, Timeout: 5 * time.Second}
	c.Inference = InferenceConfig{Provider: "openai", Model: "gpt-4o-mini", LiteModel: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 2000, Timeout: 60 * time.Second, RetryAttempts: 3}
	c.Telemetry = TelemetryConfig{SamplingRate: 1.0, Insecure: true}
	c.Resilience = ResilienceConfig{CircuitBreakerThreshold: 5, CircuitBreakerTimeout: 30 * time.Second, RetryMaxAttempts: 3, RetryInitialInterval: 200 * time.Millisecond, RetryMaxInterval: 5 * time.Second}
	c.Logging = LoggingConfig{Level: "info", Format: "json"}
	c.Blueprint = BlueprintConfig{Dir: "/gaia/blueprints"}
	c.Vector = VectorConfig{KnowledgeDir: "/knowledge", StorePath: "/vector_store", EmbeddingModel: "text-embedding-3-small"}
	c.Observer = ObserverConfig{Mode: "block", MinInterval: 500 * time.Millisecond, GraceTokens: 12, GraceDelay: 500 * time.Millisecond, MaxTokens: 64, TopP: 0.9, KeywordRatioThresh: 0.25}
	c.Heartbeat = HeartbeatConfig{IntervalSeconds: 1200, LiteJournalEnabled: true, TemporalStateEnabled: true, TemporalInterviewEnabled: true, BakeIntervalTicks: 3, InterviewIntervalTicks: 6, SeedRevisitDays: 7, SeedsDir: "/gaia/heartbeat/seeds", TemporalStateDir: "/gaia/heartbeat/temporal"}
	c.Fabric = FabricConfig{CoreURL: "http://gaia-core:8080", StudyURL: "http://gaia-study:8080", GPUCleanupThresholdMB: 500, GPUCleanupPollInterval: 1 * time.Second, GPUCleanupTimeout: 30 * time.Second, HTTPTimeout: 10 * time.Second, NotificationHistoryLimit: 100}
	c.Study = StudyConfig{MaxTrainingSamples: 500, MaxDocSizeBytes: 1 << 20, MaxTrainingSteps: 200, AdapterDir: "/gaia/adapters", GlobalAdapterLimit: 8, UserAdapterLimit: 4, SessionAdapterLimit: 2}
}

// applyEnv overlays the subset of fields that commonly need
// environment overrides in container deployment.
func applyEnv(c *Config) error {
	if v, ok := firstEnv("GAIA_SERVICE_NAME"); ok {
		c.ServiceName = v
	}
	if v, ok := firstEnv("GAIA_HTTP_PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return gaiaerr.New("gaiaconfig.applyEnv", "config", fmt.Errorf("%w: GAIA_HTTP_PORT: %v", gaiaerr.ErrInvalidConfiguration, err))
		}
		c.HTTP.Port = p
	}
	if v, ok := firstEnv("GAIA_REDIS_URL", "REDIS_URL"); ok {
		c.Redis.URL = v
	}
	if v, ok := firstEnv("GAIA_AI_API_KEY", "OPENAI_API_KEY"); ok {
		c.Inference.APIKey = v
	}
	if v, ok := firstEnv("GAIA_AI_MODEL"); ok {
		c.Inference.Model = v
	}
	if v, ok := firstEnv("GAIA_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := firstEnv("GAIA_LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
	if v, ok := firstEnv("GAIA_BLUEPRINT_DIR"); ok {
		c.Blueprint.Dir = v
	}
	if v, ok := firstEnv("GAIA_BLUEPRINT_BOOTSTRAP"); ok {
		c.Blueprint.BootstrapMode = strings.EqualFold(v, "true")
	}
	if v, ok := firstEnv("GAIA_KNOWLEDGE_DIR"); ok {
		c.Vector.KnowledgeDir = v
	}
	if v, ok := firstEnv("GAIA_VECTOR_STORE_PATH"); ok {
		c.Vector.StorePath = v
	}
	if v, ok := firstEnv("GAIA_OBSERVER_MODE"); ok {
		c.Observer.Mode = v
	}
	if v, ok := firstEnv("GAIA_HEARTBEAT_INTERVAL_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			c.Heartbeat.IntervalSeconds = n
		}
	}
	if v, ok := firstEnv("GAIA_STUDY_MAX_SAMPLES"); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			c.Study.MaxTrainingSamples = n
		}
	}
	if v, ok := firstEnv("GAIA_STUDY_ADAPTER_DIR"); ok {
		c.Study.AdapterDir = v
	}
	if v, ok := firstEnv("GAIA_STUDY_TRAINER_URL"); ok {
		c.Study.TrainerURL = v
	}
	if v, ok := firstEnv("GAIA_MOCK_AI"); ok {
		c.Dev.MockAI = strings.EqualFold(v, "true")
	}
	if v, ok := firstEnv("GAIA_DEV_MODE"); ok {
		c.Dev.Enabled = strings.EqualFold(v, "true")
	}
	return nil
}

func firstEnv(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := os.LookupEnv(n); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

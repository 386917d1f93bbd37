// Package config loads ingestcore's runtime configuration from environment
// variables (optionally via a .env file) with an optional YAML overlay,
// following the teacher's internal/config.Load pattern.
package config

// VectorConfig selects and parameterizes the Vector Store Gateway backend.
type VectorConfig struct {
	// Backend is one of "memory", "postgres", "qdrant".
	Backend    string `yaml:"backend"`
	DSN        string `yaml:"dsn"`
	Table      string `yaml:"table"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"`
}

// ArtifactConfig selects and parameterizes the Artifact Store backend.
type ArtifactConfig struct {
	// Backend is one of "local", "object-store".
	Backend string   `yaml:"backend"`
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// S3SSEConfig configures server-side encryption for the S3 object store
// backend. Mode is one of "", "sse-s3", "sse-kms".
type S3SSEConfig struct {
	Mode     string `yaml:"mode"`
	KMSKeyID string `yaml:"kms_key_id"`
}

// S3Config parameterizes the S3-compatible object store backend.
type S3Config struct {
	Bucket                string      `yaml:"bucket"`
	Prefix                string      `yaml:"prefix"`
	Region                string      `yaml:"region"`
	Endpoint              string      `yaml:"endpoint"`
	AccessKey             string      `yaml:"access_key"`
	SecretKey             string      `yaml:"secret_key"`
	UsePathStyle          bool        `yaml:"use_path_style"`
	TLSInsecureSkipVerify bool        `yaml:"tls_insecure_skip_verify"`
	SSE                   S3SSEConfig `yaml:"sse"`
}

// JobConfig parameterizes the Job Repository backend.
type JobConfig struct {
	Backend string `yaml:"backend"` // "postgres" (must support row-level locking) or "memory"
	DSN     string `yaml:"dsn"`
}

// EmbeddingConfig parameterizes the embedding HTTP client.
type EmbeddingConfig struct {
	BaseURL   string            `yaml:"base_url"`
	Path      string            `yaml:"path"`
	Model     string            `yaml:"model"`
	APIHeader string            `yaml:"api_header"`
	APIKey    string            `yaml:"api_key"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   int               `yaml:"timeout_seconds"`
}

// WorkerConfig tunes worker-loop behavior.
type WorkerConfig struct {
	Queue           string `yaml:"queue"`
	PollInterval    int    `yaml:"poll_interval_seconds"`
	ReaperEnabled   bool   `yaml:"reaper_enabled"`
	ReaperInterval  int    `yaml:"reaper_interval_seconds"`
	LeaseTimeout    int    `yaml:"lease_timeout_seconds"`
}

// HTTPConfig configures the front-end HTTP surface.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration object for both the daemon and the CLI.
type Config struct {
	Vector    VectorConfig    `yaml:"vector"`
	Artifact  ArtifactConfig  `yaml:"artifact"`
	Job       JobConfig       `yaml:"job"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Worker    WorkerConfig    `yaml:"worker"`
	HTTP      HTTPConfig      `yaml:"http"`
	// IngestExts is the default file-extension allowlist for file-scan
	// adapters (local_dir, github_repo) when a SourceSpec omits its own.
	IngestExts []string `yaml:"ingest_exts"`
	// GitHubToken authenticates github_org/github_issues adapter calls and
	// raises their unauthenticated rate limit.
	GitHubToken string `yaml:"github_token"`
	LogLevel    string `yaml:"log_level"`
	LogPath     string `yaml:"log_path"`
}

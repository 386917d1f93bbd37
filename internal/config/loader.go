package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables (optionally
// overlaid by a .env file, as the teacher's config.Load does via
// godotenv.Overload), then applies defaults for fields that are awkward to
// represent as zero values.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}
	cfg.Vector.Backend = firstNonEmpty(os.Getenv("VECTOR_BACKEND"), "memory")
	cfg.Vector.DSN = os.Getenv("VECTOR_DSN")
	cfg.Vector.Table = firstNonEmpty(os.Getenv("VECTOR_TABLE_NAME"), "embeddings")
	cfg.Vector.Collection = firstNonEmpty(os.Getenv("VECTOR_COLLECTION"), "ingestcore")
	cfg.Vector.Dimensions = envInt("EMBED_DIM", 0)
	cfg.Vector.Metric = firstNonEmpty(os.Getenv("VECTOR_METRIC"), "cosine")

	cfg.Artifact.Backend = firstNonEmpty(os.Getenv("ARTIFACT_BACKEND"), "local")
	cfg.Artifact.Dir = firstNonEmpty(os.Getenv("ARTIFACT_DIR"), "./artifacts")
	cfg.Artifact.S3.Bucket = os.Getenv("ARTIFACT_S3_BUCKET")
	cfg.Artifact.S3.Prefix = os.Getenv("ARTIFACT_S3_PREFIX")
	cfg.Artifact.S3.Region = firstNonEmpty(os.Getenv("ARTIFACT_S3_REGION"), "us-east-1")
	cfg.Artifact.S3.Endpoint = os.Getenv("ARTIFACT_S3_ENDPOINT")
	cfg.Artifact.S3.AccessKey = os.Getenv("ARTIFACT_S3_ACCESS_KEY")
	cfg.Artifact.S3.SecretKey = os.Getenv("ARTIFACT_S3_SECRET_KEY")
	cfg.Artifact.S3.UsePathStyle = envBool("ARTIFACT_S3_PATH_STYLE", false)

	cfg.Job.Backend = firstNonEmpty(os.Getenv("JOB_BACKEND"), "memory")
	cfg.Job.DSN = os.Getenv("JOB_DSN")

	cfg.Embedding.BaseURL = os.Getenv("EMBED_BASE_URL")
	cfg.Embedding.Path = firstNonEmpty(os.Getenv("EMBED_PATH"), "/v1/embeddings")
	cfg.Embedding.Model = os.Getenv("EMBED_MODEL")
	cfg.Embedding.APIHeader = firstNonEmpty(os.Getenv("EMBED_API_HEADER"), "Authorization")
	cfg.Embedding.APIKey = os.Getenv("EMBED_API_KEY")
	cfg.Embedding.Timeout = envInt("EMBED_TIMEOUT_SECONDS", 30)

	cfg.Worker.Queue = firstNonEmpty(os.Getenv("WORKER_QUEUE_TYPE"), "ingest")
	cfg.Worker.PollInterval = envInt("WORKER_POLL_INTERVAL_SECONDS", 2)
	cfg.Worker.ReaperEnabled = envBool("WORKER_REAPER_ENABLED", false)
	cfg.Worker.ReaperInterval = envInt("WORKER_REAPER_INTERVAL_SECONDS", 30)
	cfg.Worker.LeaseTimeout = envInt("WORKER_LEASE_TIMEOUT_SECONDS", 900)

	cfg.HTTP.Addr = firstNonEmpty(os.Getenv("HTTP_ADDR"), ":8088")

	if v := os.Getenv("INGEST_EXTS"); v != "" {
		cfg.IngestExts = strings.Split(v, ",")
	} else {
		cfg.IngestExts = []string{".md", ".txt", ".go", ".py", ".js", ".ts", ".rst"}
	}

	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")

	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")
	cfg.LogPath = os.Getenv("LOG_PATH")

	if path := os.Getenv("INGESTCORE_CONFIG_FILE"); path != "" {
		if err := overlayYAML(&cfg, path); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// overlayYAML merges a YAML file's fields on top of env-derived defaults.
// Any field present in the file overrides the corresponding env value.
func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

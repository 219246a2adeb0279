package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode   `yaml:"mode"`
	HTTPAddr string `yaml:"http_addr"`
	SiteID   string `yaml:"site_id"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	BlobBasePath string `yaml:"blob_base_path"`

	AuthHMACSecret string `yaml:"auth_hmac_secret"`

	// seeded at startup when SeedTeacher is set and the teachers table is empty
	SeedTeacher        bool   `yaml:"seed_teacher"`
	DefaultTeacher     string `yaml:"default_teacher"`
	DefaultTeacherPass string `yaml:"default_teacher_password"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	WorkspaceTTL  time.Duration `yaml:"workspace_ttl"`

	AIAPIKey  string `yaml:"ai_api_key"`
	AIBaseURL string `yaml:"ai_base_url"`
	AIModel   string `yaml:"ai_model"`

	// Remote paper/question service; empty means in-process.
	PaperServiceURL          string `yaml:"paper_service_url"`
	PaperServiceToken        string `yaml:"paper_service_token"`
	PaperServiceTokenURL     string `yaml:"paper_service_token_url"`
	PaperServiceClientID     string `yaml:"paper_service_client_id"`
	PaperServiceClientSecret string `yaml:"paper_service_client_secret"`

	AttachScore     float64       `yaml:"attach_score"`
	AssemblyTimeout time.Duration `yaml:"assembly_timeout"`

	CORSOriginsOnline  []string `yaml:"cors_origins_online"`
	CORSOriginsOffline []string `yaml:"cors_origins_offline"`
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		SiteID:   envOr("SITE_ID", "local"),

		DBDriver:     envOr("DB_DRIVER", "sqlite"),
		DBDSN:        envOr("DB_DSN", ""),
		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),

		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		SeedTeacher:        envBool("SEED_TEACHER", mode == ModeOffline),
		DefaultTeacher:     envOr("DEFAULT_TEACHER", "teacher"),
		DefaultTeacherPass: envOr("DEFAULT_TEACHER_PASSWORD", "teacher"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		WorkspaceTTL:  envDuration("WORKSPACE_TTL", 24*time.Hour),

		AIAPIKey:  os.Getenv("AI_API_KEY"),
		AIBaseURL: envOr("AI_BASE_URL", "https://api.deepseek.com/v1"),
		AIModel:   envOr("AI_MODEL", "deepseek-chat"),

		PaperServiceURL:          os.Getenv("PAPER_SERVICE_URL"),
		PaperServiceToken:        os.Getenv("PAPER_SERVICE_TOKEN"),
		PaperServiceTokenURL:     os.Getenv("PAPER_SERVICE_TOKEN_URL"),
		PaperServiceClientID:     os.Getenv("PAPER_SERVICE_CLIENT_ID"),
		PaperServiceClientSecret: os.Getenv("PAPER_SERVICE_CLIENT_SECRET"),

		AttachScore:     envFloat("ATTACH_SCORE", 10),
		AssemblyTimeout: envDuration("ASSEMBLY_TIMEOUT", 5*time.Minute),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://papers.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5000"),
	}
}

// Load reads the environment and then overlays the YAML file named by
// CONFIG_FILE, if any. Keys present in the file win.
func Load() (Config, error) {
	cfg := FromEnv()
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config file: %w", err)
	}
	if err := Overlay(&cfg, raw); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Overlay decodes YAML over cfg; absent keys keep their current values.
func Overlay(cfg *Config, raw []byte) error {
	return yaml.Unmarshal(raw, cfg)
}

// CORSOrigins returns the allowed origins for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil && f > 0 {
		return f
	}
	return def
}
func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

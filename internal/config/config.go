package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Embedding  EmbeddingConfig
	Database   DatabaseConfig
	MySQL      MySQLConfig
	Matching   MatchingConfig
	Enrollment EnrollmentConfig
	Attendance AttendanceConfig
}

type EmbeddingConfig struct {
	URL     string        // face embedding service base URL (defaults to http://localhost:8000)
	Dim     int           // embedding vector length, must match the vector column in the database
	Timeout time.Duration // limit for a single detection call
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MySQLConfig struct {
	DSN string // MySQL DSN; when set the MySQL backend is used instead of PostgreSQL
}

type MatchingConfig struct {
	Threshold    float64 `yaml:"threshold"`      // minimum cosine similarity for a face/student pairing
	IdentifyTopK int     `yaml:"identify_top_k"` // candidates returned per face by identify
}

type EnrollmentConfig struct {
	Concurrency int `yaml:"concurrency"` // parallel folder workers during enrollment
}

type AttendanceConfig struct {
	CropsDir    string `yaml:"crops_dir"`    // root directory for attendance face crops
	CropPadding int    `yaml:"crop_padding"` // pixels added around a face box before cropping
}

// defaults mirrors the embedded defaults.yaml layout.
type defaults struct {
	Embedding struct {
		URL            string `yaml:"url"`
		Dim            int    `yaml:"dim"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"embedding"`
	Matching   MatchingConfig   `yaml:"matching"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
	Attendance AttendanceConfig `yaml:"attendance"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envStr reads an environment variable, falling back to the default when
// unset or empty.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from the embedded defaults overlaid with
// environment variables.
func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL:     envStr("EMBEDDING_URL", d.Embedding.URL),
			Dim:     envInt("EMBEDDING_DIM", d.Embedding.Dim),
			Timeout: time.Duration(envInt("EMBEDDING_TIMEOUT_SECONDS", d.Embedding.TimeoutSeconds)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MySQL: MySQLConfig{
			DSN: os.Getenv("MYSQL_DSN"),
		},
		Matching: MatchingConfig{
			Threshold:    envFloat("SIMILARITY_THRESHOLD", d.Matching.Threshold),
			IdentifyTopK: envInt("IDENTIFY_TOP_K", d.Matching.IdentifyTopK),
		},
		Enrollment: EnrollmentConfig{
			Concurrency: envInt("ENROLL_CONCURRENCY", d.Enrollment.Concurrency),
		},
		Attendance: AttendanceConfig{
			CropsDir:    envStr("ATTENDANCE_CROPS_DIR", d.Attendance.CropsDir),
			CropPadding: envInt("ATTENDANCE_CROP_PADDING", d.Attendance.CropPadding),
		},
	}
}

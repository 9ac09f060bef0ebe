package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kozaktomas/rollcall/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var messagesYAML []byte

type Config struct {
	Gallery   GalleryConfig
	Session   SessionConfig
	Camera    CameraConfig
	Embedding EmbeddingConfig
	Notify    NotifyConfig
	Database  DatabaseConfig
	Web       WebConfig
}

type GalleryConfig struct {
	DatasetDir        string  // defaults to ./dataset
	LookalikeDistance float64 // defaults to 0.5
}

type SessionConfig struct {
	AttendanceDir       string        // defaults to ./attendance
	RoundDuration       time.Duration // defaults to 20s
	RestInterval        time.Duration // defaults to 10s
	AcceptThreshold     float64       // defaults to 0.6
	FrameMaxSize        int           // defaults to 1920, 0 disables downscaling
	FrameDedupThreshold int           // max dHash bit difference for a repeated frame, -1 disables
}

type CameraConfig struct {
	Mode          string // mjpeg, snapshot or dir
	URL           string // stream URL, snapshot URL or frame directory
	Username      string
	Password      string
	FrameInterval time.Duration // polling interval for snapshot and dir modes
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512
}

type NotifyConfig struct {
	URL         string // messaging gateway webhook; empty logs rosters instead
	Destination string // recipient address, e.g. a phone number
	Token       string
	Delay       time.Duration // defaults to 20s
	Messages    MessagesConfig
}

// MessagesConfig holds the fixed lines of the roster message.
type MessagesConfig struct {
	Header       string `yaml:"header"`
	AbsentHeader string `yaml:"absent_header"`
	AllPresent   string `yaml:"all_present"`
}

type DatabaseConfig struct {
	URL          string // attendance mirror DSN, empty disables the mirror
	Driver       string // postgres (default) or mariadb
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	Host string
	Port int // 0 disables the API server
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

// envSignedInt is like envInt but accepts zero and negative values.
func envSignedInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration ("20s", "1m30s")
// or a plain number of seconds. Negative or invalid values fall back to the
// default.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n >= 0 {
		return time.Duration(n * float64(time.Second))
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var messages MessagesConfig
	if err := yaml.Unmarshal(messagesYAML, &messages); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded messages.yaml: " + err.Error())
	}

	return &Config{
		Gallery: GalleryConfig{
			DatasetDir:        envString("DATASET_DIR", constants.DefaultDatasetDir),
			LookalikeDistance: envFloat("ENROLL_LOOKALIKE_DISTANCE", constants.DefaultLookalikeDistance),
		},
		Session: SessionConfig{
			AttendanceDir:       envString("ATTENDANCE_DIR", constants.DefaultAttendanceDir),
			RoundDuration:       envDuration("ROUND_DURATION", constants.DefaultRoundDuration),
			RestInterval:        envDuration("REST_INTERVAL", constants.DefaultRestInterval),
			AcceptThreshold:     envFloat("ACCEPT_THRESHOLD", constants.DefaultAcceptThreshold),
			FrameMaxSize:        envSignedInt("FRAME_MAX_SIZE", constants.MaxImageSize),
			FrameDedupThreshold: envSignedInt("FRAME_DEDUP_THRESHOLD", constants.DefaultFrameDedupThreshold),
		},
		Camera: CameraConfig{
			Mode:          envString("CAMERA_MODE", "mjpeg"),
			URL:           os.Getenv("CAMERA_URL"),
			Username:      os.Getenv("CAMERA_USERNAME"),
			Password:      os.Getenv("CAMERA_PASSWORD"),
			FrameInterval: envDuration("CAMERA_FRAME_INTERVAL", constants.DefaultFrameInterval),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", constants.DefaultEmbeddingDim),
		},
		Notify: NotifyConfig{
			URL:         os.Getenv("NOTIFY_URL"),
			Destination: os.Getenv("NOTIFY_DESTINATION"),
			Token:       os.Getenv("NOTIFY_TOKEN"),
			Delay:       envDuration("NOTIFY_DELAY", constants.DefaultNotifyDelay),
			Messages: MessagesConfig{
				Header:       envString("NOTIFY_HEADER", messages.Header),
				AbsentHeader: envString("NOTIFY_ABSENT_HEADER", messages.AbsentHeader),
				AllPresent:   envString("NOTIFY_ALL_PRESENT", messages.AllPresent),
			},
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       envString("DATABASE_DRIVER", "postgres"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", constants.DefaultWebHost),
			Port: envSignedInt("WEB_PORT", 0),
		},
	}
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.Session.RoundDuration <= 0 {
		return fmt.Errorf("ROUND_DURATION must be positive, got %s", c.Session.RoundDuration)
	}
	switch c.Camera.Mode {
	case "mjpeg", "snapshot", "dir":
	default:
		return fmt.Errorf("CAMERA_MODE must be mjpeg, snapshot or dir, got %q", c.Camera.Mode)
	}
	if c.Database.URL != "" {
		switch c.Database.Driver {
		case "postgres", "mariadb":
		default:
			return fmt.Errorf("DATABASE_DRIVER must be postgres or mariadb, got %q", c.Database.Driver)
		}
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("WEB_PORT out of range: %d", c.Web.Port)
	}
	return nil
}

// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"

	AIProviderGemini = "gemini"
	AIProviderRemote = "remote"

	ImageStoreDataURI = "datauri"
	ImageStoreS3      = "s3"

	DefaultTrustedImageOrigin = "https://firebasestorage.googleapis.com"

	// DefaultImageModel answers generateContent with inline image parts
	// without any extra generation config. Models such as
	// gemini-2.0-flash-preview-image-generation only return images when the
	// request lists IMAGE in its response modalities, which the
	// generative-ai-go client cannot express, so they fail at request time.
	DefaultImageModel = "gemini-3-pro-image-preview"
)

// Config is the full server configuration. Load fills it from the
// environment; tests usually build one by hand.
type Config struct {
	Port     int
	LogLevel slog.Level

	StoreDriver string
	DBPath      string
	SeedCatalog bool

	TrustedImageOrigin string

	Identity IdentityConfig
	AI       AIConfig
	Images   ImageConfig
	TryOn    TryOnConfig
	Limits   RateLimitConfig
}

// IdentityConfig describes how bearer credentials from the identity
// provider are verified. Exactly one of JWTSecret or PublicKeyFile is used;
// the public key wins when both are set.
type IdentityConfig struct {
	Audience      string
	Issuer        string
	JWTSecret     string
	PublicKeyFile string

	// AdminSubjects are identity-provider subjects granted the admin role
	// when they sync. It is the only way to get an admin on the memory
	// store, which the promote command cannot reach.
	AdminSubjects []string
}

// AIConfig selects the photo analysis and try-on image provider. Timeout
// bounds a single analysis call and a single try-on job alike.
type AIConfig struct {
	Provider      string
	GeminiAPIKey  string
	AnalysisModel string
	ImageModel    string
	RemoteURL     string
	RemoteToken   string
	Timeout       time.Duration
}

// ImageConfig selects where generated try-on images are kept. Without a
// PublicBaseURL, S3 images are stored as s3:// references and presigned each
// time a trial is read.
type ImageConfig struct {
	Store         string
	AWSRegion     string
	S3Bucket      string
	PublicBaseURL string
}

// TryOnConfig sizes the background worker pool. Pending trials that did
// not fit in the queue are picked up again every ResumeInterval; zero
// disables the periodic pass and leaves only the one at startup.
type TryOnConfig struct {
	Workers        int
	QueueSize      int
	TaskTimeout    time.Duration
	ResumeInterval time.Duration
}

// RateLimitConfig is the per-user token bucket on the AI routes.
type RateLimitConfig struct {
	AIPerMinute int
	AIBurst     int
}

// Load reads the configuration and validates it for the API server.
func Load() (Config, error) {
	cfg, err := parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadBase reads the same variables as Load but only checks the settings
// that every command shares: the store and the trusted image origin. Tools
// that never serve requests or call the AI provider, such as promote, use
// it so they run without identity or provider secrets.
func LoadBase() (Config, error) {
	cfg, err := parse()
	if err != nil {
		return Config{}, err
	}
	if errs := cfg.baseErrors(); len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func parse() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}

	var p parser
	cfg := Config{
		Port:        p.int("PORT", 8080),
		LogLevel:    p.level("LOG_LEVEL", slog.LevelInfo),
		StoreDriver: getenv("STORE_DRIVER", StoreMemory),
		DBPath:      getenv("DB_PATH", "data/fitting-room.db"),
		SeedCatalog: p.bool("SEED_CATALOG", true),

		TrustedImageOrigin: getenv("TRUSTED_IMAGE_ORIGIN", DefaultTrustedImageOrigin),

		Identity: IdentityConfig{
			Audience:      os.Getenv("IDENTITY_AUDIENCE"),
			Issuer:        os.Getenv("IDENTITY_ISSUER"),
			JWTSecret:     os.Getenv("IDENTITY_JWT_SECRET"),
			PublicKeyFile: os.Getenv("IDENTITY_PUBLIC_KEY_FILE"),
			AdminSubjects: list(os.Getenv("ADMIN_SUBJECTS")),
		},
		AI: AIConfig{
			Provider:      getenv("AI_PROVIDER", AIProviderGemini),
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			AnalysisModel: getenv("GEMINI_ANALYSIS_MODEL", "gemini-2.0-flash-exp"),
			ImageModel:    getenv("GEMINI_IMAGE_MODEL", DefaultImageModel),
			RemoteURL:     os.Getenv("TRYON_API_URL"),
			RemoteToken:   os.Getenv("TRYON_API_TOKEN"),
			Timeout:       p.duration("AI_TIMEOUT", 60*time.Second),
		},
		Images: ImageConfig{
			Store:         getenv("IMAGE_STORE", ImageStoreDataURI),
			AWSRegion:     getenv("AWS_REGION", "us-east-1"),
			S3Bucket:      os.Getenv("S3_BUCKET"),
			PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		},
		TryOn: TryOnConfig{
			Workers:        p.int("TRYON_WORKERS", 4),
			QueueSize:      p.int("TRYON_QUEUE_SIZE", 64),
			TaskTimeout:    p.duration("AI_TIMEOUT", 60*time.Second),
			ResumeInterval: p.duration("TRYON_RESUME_INTERVAL", time.Minute),
		},
		Limits: RateLimitConfig{
			AIPerMinute: p.int("AI_RATE_PER_MINUTE", 10),
			AIBurst:     p.int("AI_RATE_BURST", 5),
		},
	}

	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

// Validate checks cross-field rules that single-variable parsing cannot.
func (c Config) Validate() error {
	errs := c.baseErrors()

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.Identity.JWTSecret == "" && c.Identity.PublicKeyFile == "" {
		errs = append(errs, errors.New("one of IDENTITY_JWT_SECRET or IDENTITY_PUBLIC_KEY_FILE is required"))
	}
	switch c.AI.Provider {
	case AIProviderGemini:
		if c.AI.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case AIProviderRemote:
		if c.AI.RemoteURL == "" {
			errs = append(errs, errors.New("TRYON_API_URL is required for the remote provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER must be %q or %q, got %q", AIProviderGemini, AIProviderRemote, c.AI.Provider))
	}
	switch c.Images.Store {
	case ImageStoreDataURI:
	case ImageStoreS3:
		if c.Images.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 image store"))
		}
	default:
		errs = append(errs, fmt.Errorf("IMAGE_STORE must be %q or %q, got %q", ImageStoreDataURI, ImageStoreS3, c.Images.Store))
	}
	if c.TryOn.Workers <= 0 || c.TryOn.QueueSize <= 0 {
		errs = append(errs, errors.New("TRYON_WORKERS and TRYON_QUEUE_SIZE must be positive"))
	}
	if c.TryOn.ResumeInterval < 0 {
		errs = append(errs, errors.New("TRYON_RESUME_INTERVAL must not be negative"))
	}
	if c.Limits.AIPerMinute <= 0 || c.Limits.AIBurst <= 0 {
		errs = append(errs, errors.New("AI_RATE_PER_MINUTE and AI_RATE_BURST must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) baseErrors() []error {
	var errs []error
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StoreSQLite, c.StoreDriver))
	}
	if c.StoreDriver == StoreSQLite && c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
	}
	if !strings.HasPrefix(c.TrustedImageOrigin, "https://") {
		errs = append(errs, fmt.Errorf("TRUSTED_IMAGE_ORIGIN must be an https origin, got %q", c.TrustedImageOrigin))
	}
	return errs
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// list splits a comma-separated value, dropping blanks.
func list(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser records the first malformed variable so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s value %q: %w", key, value, err)
	}
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, v, err)
		return def
	}
	return l
}

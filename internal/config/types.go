package config

import "time"

// Config represents the complete psdglot configuration.
type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	State       StateConfig       `yaml:"state"`
	Storage     StorageConfig     `yaml:"storage"`
	ImageAPI    ImageAPIConfig    `yaml:"image_api"`
	Translation TranslationConfig `yaml:"translation"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name           string `yaml:"name"`
	Listen         string `yaml:"listen"`
	LogLevel       string `yaml:"log_level"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// StateConfig defines run-ledger storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig defines the S3-compatible object store used for staging
// documents between the service and the image-editing API.
type StorageConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	AccessKey   string        `yaml:"access_key"`
	SecretKey   string        `yaml:"secret_key"`
	Bucket      string        `yaml:"bucket"`
	Region      string        `yaml:"region,omitempty"`
	UseSSL      bool          `yaml:"use_ssl"`
	URLTTL      time.Duration `yaml:"url_ttl"`
	DeleteAfter time.Duration `yaml:"delete_after"`
}

// ImageAPIConfig defines the image-editing service and its OAuth2 client.
type ImageAPIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	TokenURL     string        `yaml:"token_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Scopes       []string      `yaml:"scopes"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollAttempts int           `yaml:"poll_attempts"`
}

// TranslationConfig defines the translation API and its rate budget.
type TranslationConfig struct {
	BaseURL    string        `yaml:"base_url"`
	AuthKey    string        `yaml:"auth_key"`
	CallDelay  time.Duration `yaml:"call_delay"`
	TargetLang string        `yaml:"target_lang,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:           "psdglot",
			Listen:         "127.0.0.1:8080",
			LogLevel:       "info",
			MaxUploadBytes: 64 * 1024 * 1024,
		},
		State: StateConfig{
			Path: "./psdglot.db",
		},
		Storage: StorageConfig{
			URLTTL:      15 * time.Minute,
			DeleteAfter: 10 * time.Minute,
		},
		ImageAPI: ImageAPIConfig{
			Scopes:       []string{"openid", "AdobeID", "read_organizations"},
			PollInterval: 5 * time.Second,
			PollAttempts: 10,
		},
		Translation: TranslationConfig{
			CallDelay:  1 * time.Second,
			TargetLang: "EN",
		},
	}
}

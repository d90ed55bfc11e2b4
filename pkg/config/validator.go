package config

import "time"

// ValidatorConfig holds runtime configuration for the validation service.
type ValidatorConfig struct {
	Environment     string
	Addr            string
	DockerHost      string
	Workdir         string
	DatabasePath    string
	GitTimeout      time.Duration
	BuildTimeout    time.Duration
	RunTimeout      time.Duration
	ReadyAttempts   int
	ReadyInterval   time.Duration
	InvokeTimeout   time.Duration
	HostPort        int
	ArtifactBucket  string
	ArtifactPrefix  string
	ArtifactDir     string
	ArtifactLinkTTL time.Duration
	GitHubAPIURL    string
	GitHubToken     string
	WebhookSecret   string
	Mission         string
	UseTestData     bool
	LogLevel        string
}

// LoadValidatorConfig constructs a ValidatorConfig from environment variables.
func LoadValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		Environment:     GetString("APP_ENV", "development"),
		Addr:            GetString("VALIDATOR_ADDR", ":5000"),
		DockerHost:      GetString("DOCKER_HOST", "unix:///var/run/docker.sock"),
		Workdir:         GetString("VALIDATOR_WORKDIR", "/tmp/lambdavet"),
		DatabasePath:    GetString("VALIDATOR_DB_PATH", "lambdavet.db"),
		GitTimeout:      time.Duration(GetInt("GIT_TIMEOUT_SECONDS", 60)) * time.Second,
		BuildTimeout:    time.Duration(GetInt("BUILD_TIMEOUT_SECONDS", 600)) * time.Second,
		RunTimeout:      time.Duration(GetInt("RUN_TIMEOUT_SECONDS", 900)) * time.Second,
		ReadyAttempts:   GetInt("READY_ATTEMPTS", 20),
		ReadyInterval:   time.Duration(GetInt("READY_INTERVAL_MS", 500)) * time.Millisecond,
		InvokeTimeout:   time.Duration(GetInt("INVOKE_TIMEOUT_SECONDS", 120)) * time.Second,
		HostPort:        GetInt("VALIDATOR_HOST_PORT", 0),
		ArtifactBucket:  GetString("ARTIFACT_BUCKET", ""),
		ArtifactPrefix:  GetString("ARTIFACT_PREFIX", "lambdavet"),
		ArtifactDir:     GetString("ARTIFACT_DIR", "artifacts"),
		ArtifactLinkTTL: time.Duration(GetInt("ARTIFACT_LINK_TTL_HOURS", 72)) * time.Hour,
		GitHubAPIURL:    GetString("GITHUB_API_URL", "https://api.github.com"),
		GitHubToken:     GetString("GITHUB_TOKEN", ""),
		WebhookSecret:   GetString("WEBHOOK_SECRET", ""),
		Mission:         GetString("SWXSOC_MISSION", "swsoc"),
		UseTestData:     GetBool("USE_INSTRUMENT_TEST_DATA", true),
		LogLevel:        GetString("LOG_LEVEL", "info"),
	}
}

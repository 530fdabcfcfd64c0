package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
)

// DefaultFiles are read in order; missing files are skipped.
var DefaultFiles = []string{"./config.hcl", "./config.local.hcl", "$HOME/.config/news-sync/config.hcl"}

type Config struct {
	GitHubToken  string `hcl:"github_token" env:"GITHUB_TOKEN"`
	GitHubOwner  string `hcl:"github_owner" env:"GITHUB_OWNER" default:"mhodieknowledge"`
	GitHubRepo   string `hcl:"github_repo" env:"GITHUB_REPO" default:"flask-news-scraper"`
	GitHubBranch string `hcl:"github_branch" env:"GITHUB_BRANCH" default:"main"`
	GitHubAPIURL string `hcl:"github_api_url" env:"GITHUB_API_URL" default:"https://api.github.com"`

	Port     int    `hcl:"port" env:"PORT" default:"5000"`
	Timezone string `hcl:"timezone" env:"TIMEZONE" default:"Africa/Harare"`

	MaxItems       int           `hcl:"max_items" env:"MAX_ITEMS" default:"10"`
	RequestTimeout time.Duration `hcl:"request_timeout" env:"REQUEST_TIMEOUT" default:"15s"`
	RetryAttempts  int           `hcl:"retry_attempts" env:"RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `hcl:"retry_base_delay" env:"RETRY_BASE_DELAY" default:"2s"`
	RetryJitter    time.Duration `hcl:"retry_jitter" env:"RETRY_JITTER" default:"1s"`
	PaceMin        time.Duration `hcl:"pace_min" env:"PACE_MIN" default:"1.5s"`
	PaceMax        time.Duration `hcl:"pace_max" env:"PACE_MAX" default:"3.5s"`
	FeedGapMin     time.Duration `hcl:"feed_gap_min" env:"FEED_GAP_MIN" default:"4s"`
	FeedGapMax     time.Duration `hcl:"feed_gap_max" env:"FEED_GAP_MAX" default:"7s"`
	RunInterval    time.Duration `hcl:"run_interval" env:"RUN_INTERVAL" default:"0s"`

	EmptyContent        string   `hcl:"empty_content" env:"EMPTY_CONTENT" default:"keep"`
	ReadabilityFallback bool     `hcl:"readability_fallback" env:"READABILITY_FALLBACK" default:"false"`
	MinImageSize        int      `hcl:"min_image_size" env:"MIN_IMAGE_SIZE" default:"300"`
	BlockMarkers        []string `hcl:"block_markers" env:"BLOCK_MARKERS" default:"cf-browser-verification,challenge-platform"`
	FeedsFile           string   `hcl:"feeds_file" env:"FEEDS_FILE"`

	DatabaseDSN string `hcl:"database_dsn" env:"DATABASE_DSN"`

	TelegramBotToken    string `hcl:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64  `hcl:"telegram_admin_chat_id" env:"TELEGRAM_ADMIN_CHAT_ID"`

	AIType        string        `hcl:"ai_type" env:"AI_TYPE"`
	AIBaseURL     string        `hcl:"ai_base_url" env:"AI_BASE_URL"`
	AIKey         string        `hcl:"ai_key" env:"AI_KEY"`
	AIPrompt      string        `hcl:"ai_prompt" env:"AI_PROMPT"`
	AIModel       string        `hcl:"ai_model" env:"AI_MODEL" default:"llama3"`
	AITimeout     time.Duration `hcl:"ai_timeout" env:"AI_TIMEOUT" default:"5m"`
	AIConcurrency int           `hcl:"ai_concurrency" env:"AI_CONCURRENCY" default:"2"`
}

// Load reads files (DefaultFiles when none are given) and then the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:        true,
		AllowUnknownEnvs: true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".hcl": aconfighcl.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.GitHubOwner == "" || c.GitHubRepo == "" {
		errs = append(errs, errors.New("github_owner and github_repo are required"))
	}
	if c.EmptyContent != "keep" && c.EmptyContent != "skip" {
		errs = append(errs, fmt.Errorf("empty_content must be keep or skip, got %q", c.EmptyContent))
	}
	if c.PaceMax < c.PaceMin {
		errs = append(errs, errors.New("pace_max is below pace_min"))
	}
	if c.FeedGapMax < c.FeedGapMin {
		errs = append(errs, errors.New("feed_gap_max is below feed_gap_min"))
	}
	switch c.AIType {
	case "":
	case "ollama":
		if c.AIBaseURL == "" {
			errs = append(errs, errors.New(`ai_base_url is required when ai_type is "ollama"`))
		}
	case "openai":
		if c.AIKey == "" {
			errs = append(errs, errors.New(`ai_key is required when ai_type is "openai"`))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ai_type %q", c.AIType))
	}

	return errors.Join(errs...)
}

// Location is the zone article dates and times are rendered in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

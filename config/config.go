// Package config loads the deployment configuration. Values start from
// Default, are overlaid by an optional TOML file named by REAL_CONFIG_FILE,
// then by environment variables, and are finally validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// FileEnv names the environment variable holding the optional TOML file path.
const FileEnv = "REAL_CONFIG_FILE"

// Buckets names the object-storage buckets the core touches.
type Buckets struct {
	Uploads           string `toml:"uploads" validate:"required"`
	PlaceholderPhotos string `toml:"placeholder_photos"`
	BadWords          string `toml:"bad_words"`
	PromoCodes        string `toml:"promo_codes"`
}

// IdentityPools names the identity provider pools.
type IdentityPools struct {
	UserPoolID       string `toml:"user_pool_id"`
	UserPoolClientID string `toml:"user_pool_client_id"`
	IdentityPoolID   string `toml:"identity_pool_id"`
}

// Config is the full set of deployment options.
type Config struct {
	Environment string `toml:"environment" validate:"oneof=development staging production test"`
	LogLevel    string `toml:"log_level" validate:"oneof=debug info warn error"`
	AWSRegion   string `toml:"aws_region" validate:"required"`

	TableName      string `toml:"table_name" validate:"required"`
	DynamoEndpoint string `toml:"dynamo_endpoint" validate:"omitempty,url"`

	Blob            Buckets       `toml:"blob"`
	CDNDomain       string        `toml:"cdn_domain"`
	IdentityPoolIDs IdentityPools `toml:"identity_pools"`
	AppleAudiences  []string      `toml:"apple_audiences"`
	GoogleAudiences []string      `toml:"google_audiences"`
	SearchDomain    string        `toml:"search_domain"`
	EventBusName    string        `toml:"event_bus_name"`
	GraphQLURL      string        `toml:"graphql_url" validate:"omitempty,url"`
	AppStoreURL     string        `toml:"app_store_url" validate:"omitempty,url"`
	AppStoreSecret  string        `toml:"app_store_secret_name"`

	MetricsNamespace string `toml:"metrics_namespace"`

	FlagAlertThreshold     int     `toml:"flag_alert_threshold" validate:"gte=1"`
	ModerationRatio        float64 `toml:"moderation_ratio" validate:"gt=0,lte=1"`
	TrendingDecayPerDay    float64 `toml:"trending_decay_per_day" validate:"gt=0,lte=1"`
	TrendingScoreFloor     float64 `toml:"trending_score_floor" validate:"gte=0"`
	MinTrendingCountToKeep int     `toml:"min_trending_count_to_keep" validate:"gte=0"`
	ImageSizes             []int   `toml:"image_sizes" validate:"min=1,dive,gt=0"`

	ReactorMaxRounds int           `toml:"reactor_max_rounds" validate:"gte=1"`
	ProcessedTTL     time.Duration `toml:"processed_ttl" validate:"gte=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Environment:            "development",
		LogLevel:               "info",
		AWSRegion:              "us-east-1",
		TableName:              "real",
		Blob:                   Buckets{Uploads: "real-uploads"},
		FlagAlertThreshold:     5,
		ModerationRatio:        0.1,
		TrendingDecayPerDay:    0.5,
		TrendingScoreFloor:     0.1,
		MinTrendingCountToKeep: 0,
		ImageSizes:             []int{64, 480, 1080, 2160},
		ReactorMaxRounds:       64,
		ProcessedTTL:           24 * time.Hour,
	}
}

// Load builds the configuration from defaults, the optional file and env.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Namespace() + " (" + fe.Tag() + ")"
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// IsProduction reports whether the deployment is production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"ENVIRONMENT":           &c.Environment,
		"LOG_LEVEL":             &c.LogLevel,
		"AWS_REGION":            &c.AWSRegion,
		"TABLE_NAME":            &c.TableName,
		"DYNAMO_ENDPOINT":       &c.DynamoEndpoint,
		"UPLOADS_BUCKET":        &c.Blob.Uploads,
		"PLACEHOLDER_BUCKET":    &c.Blob.PlaceholderPhotos,
		"BAD_WORDS_BUCKET":      &c.Blob.BadWords,
		"PROMO_CODES_BUCKET":    &c.Blob.PromoCodes,
		"CDN_DOMAIN":            &c.CDNDomain,
		"USER_POOL_ID":          &c.IdentityPoolIDs.UserPoolID,
		"USER_POOL_CLIENT_ID":   &c.IdentityPoolIDs.UserPoolClientID,
		"IDENTITY_POOL_ID":      &c.IdentityPoolIDs.IdentityPoolID,
		"SEARCH_DOMAIN":         &c.SearchDomain,
		"EVENT_BUS_NAME":        &c.EventBusName,
		"GRAPHQL_URL":           &c.GraphQLURL,
		"APP_STORE_URL":         &c.AppStoreURL,
		"APP_STORE_SECRET_NAME": &c.AppStoreSecret,
		"METRICS_NAMESPACE":     &c.MetricsNamespace,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FLAG_ALERT_THRESHOLD":       &c.FlagAlertThreshold,
		"MIN_TRENDING_COUNT_TO_KEEP": &c.MinTrendingCountToKeep,
		"REACTOR_MAX_ROUNDS":         &c.ReactorMaxRounds,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"MODERATION_RATIO":       &c.ModerationRatio,
		"TRENDING_DECAY_PER_DAY": &c.TrendingDecayPerDay,
		"TRENDING_SCORE_FLOOR":   &c.TrendingScoreFloor,
	}
	for name, dst := range floats {
		if v, ok := lookup(name); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = f
		}
	}

	if v, ok := lookup("IMAGE_SIZES"); ok && v != "" {
		var sizes []int
		for _, part := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("IMAGE_SIZES: %w", err)
			}
			sizes = append(sizes, n)
		}
		c.ImageSizes = sizes
	}
	if v, ok := lookup("PROCESSED_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PROCESSED_TTL: %w", err)
		}
		c.ProcessedTTL = d
	}
	return nil
}

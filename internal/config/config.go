// Package config loads the application settings. Sources are applied in the
// order defaults, JSON config file, .env file and environment, command-line
// flags; a later source wins. The result is validated before use.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	RunAddr     string `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	BaseURL     string `env:"BASE_URL" json:"base_url" validate:"url"`
	LogLevel    string `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	ConfigFile  string `env:"CONFIG" json:"-"`
	DBFileName  string `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	DatabaseDSN string `env:"DATABASE_DSN" json:"database_dsn"`

	MongoDBURI      string `env:"MONGODB_URI" json:"mongodb_uri"`
	MongoDBDatabase string `env:"MONGODB_DATABASE" json:"mongodb_database" validate:"required"`

	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"-" validate:"gt=0"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`

	JWTSecret string        `env:"JWT_SECRET" json:"jwt_secret" validate:"required,base64url"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" json:"-" validate:"gt=0"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME" json:"cloudinary_cloud_name"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY" json:"cloudinary_api_key" validate:"required_with=CloudinaryCloudName"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET" json:"cloudinary_api_secret" validate:"required_with=CloudinaryCloudName"`
	CloudinaryFolder    string `env:"CLOUDINARY_FOLDER" json:"cloudinary_folder"`
	CloudinaryBaseURL   string `env:"CLOUDINARY_BASE_URL" json:"cloudinary_base_url" validate:"url"`

	MediaDir      string `env:"MEDIA_DIR" json:"media_dir" validate:"required"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" json:"max_upload_size" validate:"gt=0"`

	TrustedSubnet string `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`

	RedisAddr      string `env:"REDIS_ADDR" json:"redis_addr" validate:"omitempty,hostname_port"`
	LoginRateLimit int    `env:"LOGIN_RATE_LIMIT" json:"login_rate_limit" validate:"gt=0"`
	LoginRateBurst int    `env:"LOGIN_RATE_BURST" json:"login_rate_burst" validate:"gt=0"`

	NATSURL string `env:"NATS_URL" json:"nats_url"`

	ChannelCapacity          int           `env:"CHANNEL_CAPACITY" json:"channel_capacity" validate:"gte=0"`
	DelayBetweenQueueFetches time.Duration `env:"DELAY_BETWEEN_QUEUE_FETCHES" json:"-" validate:"gt=0"`
}

// JSON cannot hold time.Duration as "10s", so durations are read separately.
type fileDurations struct {
	DBConnectionTimeout      string `json:"db_connection_timeout"`
	TokenTTL                 string `json:"token_ttl"`
	DelayBetweenQueueFetches string `json:"delay_between_queue_fetches"`
}

var defaultConfig = Config{
	RunAddr:                  ":5001",
	BaseURL:                  "http://localhost:5001",
	LogLevel:                 "info",
	MongoDBDatabase:          "memevault",
	DBConnectionTimeout:      10 * time.Second,
	MigrationsDir:            "migrations",
	JWTSecret:                "bWVtZS12YXVsdC1kZXZlbG9wbWVudC1zZWNyZXQta2V5",
	TokenTTL:                 7 * 24 * time.Hour,
	CloudinaryFolder:         "meme-vault",
	CloudinaryBaseURL:        "https://api.cloudinary.com",
	MediaDir:                 "uploads",
	MaxUploadSize:            10 << 20,
	LoginRateLimit:           10,
	LoginRateBurst:           5,
	ChannelCapacity:          1000,
	DelayBetweenQueueFetches: 5 * time.Second,
}

// JWTSecretBytes decodes the base64url signing secret.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	return base64.URLEncoding.DecodeString(c.JWTSecret)
}

// UseCloudinary reports whether images go to Cloudinary rather than MediaDir.
func (c *Config) UseCloudinary() bool {
	return c.CloudinaryCloudName != ""
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":  true,
		"info":   true,
		"warn":   true,
		"error":  true,
		"dpanic": true,
		"panic":  true,
		"fatal":  true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing makes New ignore os.Args.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

type flagValues struct {
	configFile    string
	runAddr       string
	baseURL       string
	logLevel      string
	dbFileName    string
	databaseDSN   string
	mongoDBURI    string
	trustedSubnet string
	set           map[string]bool
}

func parseFlags(args []string) (*flagValues, error) {
	values := &flagValues{set: map[string]bool{}}

	flagSet := flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.StringVar(&values.configFile, "c", "", "path to the JSON config file")
	flagSet.StringVar(&values.runAddr, "a", "", "address and port to run server")
	flagSet.StringVar(&values.baseURL, "b", "", "public base URL of the server")
	flagSet.StringVar(&values.logLevel, "l", "", "logger level")
	flagSet.StringVar(&values.dbFileName, "f", "", "JSON file name with database")
	flagSet.StringVar(&values.databaseDSN, "d", "", "PostgreSQL connection string")
	flagSet.StringVar(&values.mongoDBURI, "m", "", "MongoDB connection URI")
	flagSet.StringVar(&values.trustedSubnet, "t", "", "trusted subnet in CIDR notation")

	if err := flagSet.Parse(args[1:]); err != nil {
		return nil, err
	}
	flagSet.Visit(func(f *flag.Flag) {
		values.set[f.Name] = true
	})

	return values, nil
}

func (f *flagValues) apply(c *Config) {
	targets := map[string]struct {
		target *string
		value  string
	}{
		"a": {&c.RunAddr, f.runAddr},
		"b": {&c.BaseURL, f.baseURL},
		"l": {&c.LogLevel, f.logLevel},
		"f": {&c.DBFileName, f.dbFileName},
		"d": {&c.DatabaseDSN, f.databaseDSN},
		"m": {&c.MongoDBURI, f.mongoDBURI},
		"t": {&c.TrustedSubnet, f.trustedSubnet},
	}
	for name, binding := range targets {
		if f.set[name] {
			*binding.target = binding.value
		}
	}
}

func (c *Config) loadJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}

	var durations fileDurations
	if err := json.Unmarshal(data, &durations); err != nil {
		return err
	}
	for _, duration := range []struct {
		raw    string
		target *time.Duration
	}{
		{durations.DBConnectionTimeout, &c.DBConnectionTimeout},
		{durations.TokenTTL, &c.TokenTTL},
		{durations.DelayBetweenQueueFetches, &c.DelayBetweenQueueFetches},
	} {
		if duration.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(duration.raw)
		if err != nil {
			return err
		}
		*duration.target = parsed
	}

	return nil
}

// New builds the validated configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	flags := &flagValues{set: map[string]bool{}}
	if !options.disableFlagsParsing {
		var err error
		flags, err = parseFlags(os.Args)
		if err != nil {
			return nil, fmt.Errorf("in internal/config/config.go/New(): error while `parseFlags()` calling: %w", err)
		}
	}

	// A missing .env file is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `godotenv.Load()` calling: %w", err)
	}

	cfg := defaultConfig

	configFile := os.Getenv("CONFIG")
	if flags.set["c"] {
		configFile = flags.configFile
	}
	if configFile != "" {
		if err := cfg.loadJSONFile(configFile); err != nil {
			return nil, fmt.Errorf("in internal/config/config.go/New(): error while `cfg.loadJSONFile()` calling: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `env.Parse()` calling: %w", err)
	}
	cfg.ConfigFile = configFile

	flags.apply(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

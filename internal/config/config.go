// Package config assembles the client configuration from, in rising
// priority, built-in defaults, an optional JSON config file, environment
// variables and command-line flags. The final values are validated
// before use.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every knob of the client.
type Config struct {
	// APIBaseURL is the base URL of the shortener REST API,
	// including the path prefix (e.g. http://localhost:8080/api).
	APIBaseURL string `env:"LINKBOARD_API_URL" json:"api_base_url" validate:"url"`

	// CredentialsFile is where the bearer token and cached profile
	// are persisted.
	CredentialsFile string `env:"LINKBOARD_CREDENTIALS_FILE" json:"credentials_file" validate:"filepath"`

	// LogLevel is the zap level name for diagnostic output.
	LogLevel string `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`

	// RequestTimeout bounds every API call issued by the client.
	RequestTimeout time.Duration `env:"LINKBOARD_REQUEST_TIMEOUT" json:"request_timeout"`

	// DemoAddr is the listen address of the built-in demo server.
	DemoAddr string `env:"LINKBOARD_DEMO_ADDRESS" json:"demo_address" validate:"hostname_port"`

	// Args holds the positional arguments left after flag parsing:
	// the command name and its parameters.
	Args []string `env:"-" json:"-" validate:"-"`
}

func defaultConfig() Config {
	credentialsFile := ".linkboard/credentials.json"
	if home, err := os.UserHomeDir(); err == nil {
		credentialsFile = filepath.Join(home, ".linkboard", "credentials.json")
	}

	return Config{
		APIBaseURL:      "http://localhost:8080/api",
		CredentialsFile: credentialsFile,
		LogLevel:        "warn",
		RequestTimeout:  15 * time.Second,
		DemoAddr:        "localhost:8080",
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func validate(values *Config) error {
	theValidator := validator.New()

	err := theValidator.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = theValidator.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return theValidator.Struct(values)
}

// InitOption customises New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing turns off command-line parsing, which tests
// use to keep the global flag set untouched.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

func applyJSONFile(values *Config, fileName string) error {
	if fileName == "" {
		return nil
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, values)
}

func applyEnv(values *Config) error {
	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return err
	}

	if valuesFromEnv.APIBaseURL != "" {
		values.APIBaseURL = valuesFromEnv.APIBaseURL
	}
	if valuesFromEnv.CredentialsFile != "" {
		values.CredentialsFile = valuesFromEnv.CredentialsFile
	}
	if valuesFromEnv.LogLevel != "" {
		values.LogLevel = valuesFromEnv.LogLevel
	}
	if valuesFromEnv.RequestTimeout != 0 {
		values.RequestTimeout = valuesFromEnv.RequestTimeout
	}
	if valuesFromEnv.DemoAddr != "" {
		values.DemoAddr = valuesFromEnv.DemoAddr
	}

	return nil
}

// New builds the configuration. Priority, lowest to highest: defaults,
// JSON config file (path from the CONFIG variable or the -c flag),
// environment variables, command-line flags.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := defaultConfig()

	configFileName := os.Getenv("CONFIG")

	if !options.disableFlagsParsing {
		fromFlags := defaultConfig()

		flag.StringVar(&configFileName, "c", configFileName, "path to a JSON config file")
		flag.StringVar(&fromFlags.APIBaseURL, "a", fromFlags.APIBaseURL, "base URL of the shortener API")
		flag.StringVar(&fromFlags.CredentialsFile, "f", fromFlags.CredentialsFile, "path to the credentials file")
		flag.StringVar(&fromFlags.LogLevel, "l", fromFlags.LogLevel, "logger level")
		flag.DurationVar(&fromFlags.RequestTimeout, "t", fromFlags.RequestTimeout, "per-request timeout")
		flag.StringVar(&fromFlags.DemoAddr, "d", fromFlags.DemoAddr, "listen address for the demo server")
		flag.Parse()

		if err := applyJSONFile(&values, configFileName); err != nil {
			return nil, err
		}
		if err := applyEnv(&values); err != nil {
			return nil, err
		}

		// Flags win, but only the ones actually set on the command line.
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "a":
				values.APIBaseURL = fromFlags.APIBaseURL
			case "f":
				values.CredentialsFile = fromFlags.CredentialsFile
			case "l":
				values.LogLevel = fromFlags.LogLevel
			case "t":
				values.RequestTimeout = fromFlags.RequestTimeout
			case "d":
				values.DemoAddr = fromFlags.DemoAddr
			}
		})

		values.Args = flag.Args()
	} else {
		if err := applyJSONFile(&values, configFileName); err != nil {
			return nil, err
		}
		if err := applyEnv(&values); err != nil {
			return nil, err
		}
	}

	if err := validate(&values); err != nil {
		return nil, err
	}

	return &values, nil
}

package config

import (
	"errors"
	"flag"
	"os"
	"time"

	configutil "github.com/NYCU-SDC/summer/pkg/config"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultRequestDelay = 200 * time.Millisecond

var (
	ErrSourceURLRequired         = errors.New("source_url is required")
	ErrSourceAPIKeyRequired      = errors.New("source_api_key is required")
	ErrDestinationURLRequired    = errors.New("destination_url is required")
	ErrDestinationAPIKeyRequired = errors.New("destination_api_key is required")
)

type Config struct {
	Debug             bool          `yaml:"debug"               envconfig:"DEBUG"`
	SourceURL         string        `yaml:"source_url"          envconfig:"SOURCE_URL"          validate:"omitempty,url"`
	SourceAPIKey      string        `yaml:"source_api_key"      envconfig:"SOURCE_API_KEY"`
	DestinationURL    string        `yaml:"destination_url"     envconfig:"DESTINATION_URL"     validate:"omitempty,url"`
	DestinationAPIKey string        `yaml:"destination_api_key" envconfig:"DESTINATION_API_KEY"`
	RequestDelay      time.Duration `yaml:"request_delay"       envconfig:"REQUEST_DELAY"       validate:"gte=0"`
	SkipExisting      bool          `yaml:"skip_existing"       envconfig:"SKIP_EXISTING"`
	MapSkipped        bool          `yaml:"map_skipped"         envconfig:"MAP_SKIPPED"`
	StopOnError       bool          `yaml:"stop_on_error"       envconfig:"STOP_ON_ERROR"`
	ForceOrder        bool          `yaml:"force_order"         envconfig:"FORCE_ORDER"`
	TagFilter         string        `yaml:"tag_filter"          envconfig:"TAG_FILTER"`
	ReportPath        string        `yaml:"report_path"         envconfig:"REPORT_PATH"`
	OtelCollectorUrl  string        `yaml:"otel_collector_url"  envconfig:"OTEL_COLLECTOR_URL"`
}

type LogBuffer struct {
	buffer []logEntry
}

type logEntry struct {
	msg  string
	err  error
	meta map[string]string
}

func NewConfigLogger() *LogBuffer {
	return &LogBuffer{}
}

func (cl *LogBuffer) Warn(msg string, err error, meta map[string]string) {
	cl.buffer = append(cl.buffer, logEntry{msg: msg, err: err, meta: meta})
}

func (cl *LogBuffer) FlushToZap(logger *zap.Logger) {
	for _, e := range cl.buffer {
		var fields []zap.Field
		if e.err != nil {
			fields = append(fields, zap.Error(e.err))
		}
		for k, v := range e.meta {
			fields = append(fields, zap.String(k, v))
		}
		logger.Warn(e.msg, fields...)
	}
	cl.buffer = nil
}

func (c *Config) Validate() error {
	if c.SourceURL == "" {
		return ErrSourceURLRequired
	}
	if c.SourceAPIKey == "" {
		return ErrSourceAPIKeyRequired
	}
	if c.DestinationURL == "" {
		return ErrDestinationURLRequired
	}
	if c.DestinationAPIKey == "" {
		return ErrDestinationAPIKeyRequired
	}

	return nil
}

func Load() (Config, *LogBuffer) {
	logger := NewConfigLogger()

	config := &Config{
		Debug:        false,
		RequestDelay: DefaultRequestDelay,
		ReportPath:   "migration-report.json",
	}

	var err error

	config, err = FromFile("config.yaml", config, logger)
	if err != nil {
		logger.Warn("Failed to load config from file", err, map[string]string{"path": "config.yaml"})
	}

	config, err = FromEnv(config, logger)
	if err != nil {
		logger.Warn("Failed to load config from env", err, map[string]string{"path": ".env"})
	}

	config, err = FromFlags(config)
	if err != nil {
		logger.Warn("Failed to load config from flags", err, map[string]string{"path": "flags"})
	}

	return *config, logger
}

func FromFile(filePath string, config *Config, logger *LogBuffer) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			logger.Warn("Failed to close config file", err, map[string]string{"path": filePath})
		}
	}(file)

	fileConfig := Config{}
	if err := yaml.NewDecoder(file).Decode(&fileConfig); err != nil {
		return config, err
	}

	return configutil.Merge[Config](config, &fileConfig)
}

func FromEnv(config *Config, logger *LogBuffer) (*Config, error) {
	if err := godotenv.Overload(); err != nil {
		if os.IsNotExist(err) {
			logger.Warn("No .env file found", err, map[string]string{"path": ".env"})
		} else {
			return nil, err
		}
	}

	envConfig := &Config{
		Debug:             os.Getenv("DEBUG") == "true",
		SourceURL:         os.Getenv("SOURCE_URL"),
		SourceAPIKey:      os.Getenv("SOURCE_API_KEY"),
		DestinationURL:    os.Getenv("DESTINATION_URL"),
		DestinationAPIKey: os.Getenv("DESTINATION_API_KEY"),
		SkipExisting:      os.Getenv("SKIP_EXISTING") == "true",
		MapSkipped:        os.Getenv("MAP_SKIPPED") == "true",
		StopOnError:       os.Getenv("STOP_ON_ERROR") == "true",
		ForceOrder:        os.Getenv("FORCE_ORDER") == "true",
		TagFilter:         os.Getenv("TAG_FILTER"),
		ReportPath:        os.Getenv("REPORT_PATH"),
		OtelCollectorUrl:  os.Getenv("OTEL_COLLECTOR_URL"),
	}

	if delay := os.Getenv("REQUEST_DELAY"); delay != "" {
		parsed, err := time.ParseDuration(delay)
		if err != nil {
			logger.Warn("Invalid REQUEST_DELAY, keeping previous value", err, map[string]string{"value": delay})
		} else {
			envConfig.RequestDelay = parsed
		}
	}

	return configutil.Merge[Config](config, envConfig)
}

func FromFlags(config *Config) (*Config, error) {
	flagConfig := &Config{}

	flag.BoolVar(&flagConfig.Debug, "debug", false, "debug mode")
	flag.StringVar(&flagConfig.SourceURL, "source_url", "", "base URL of the source installation")
	flag.StringVar(&flagConfig.SourceAPIKey, "source_api_key", "", "API key for the source installation")
	flag.StringVar(&flagConfig.DestinationURL, "destination_url", "", "base URL of the destination installation")
	flag.StringVar(&flagConfig.DestinationAPIKey, "destination_api_key", "", "API key for the destination installation")
	flag.DurationVar(&flagConfig.RequestDelay, "request_delay", 0, "delay between API calls")
	flag.BoolVar(&flagConfig.SkipExisting, "skip_existing", false, "skip workflows that already exist at the destination by name")
	flag.BoolVar(&flagConfig.MapSkipped, "map_skipped", false, "register destination ids of skipped workflows for reference rewriting")
	flag.BoolVar(&flagConfig.StopOnError, "stop_on_error", false, "abort the batch after the first failed create")
	flag.BoolVar(&flagConfig.ForceOrder, "force_order", false, "proceed with the acyclic prefix when cycles are detected")
	flag.StringVar(&flagConfig.TagFilter, "tag_filter", "", "migrate only workflows carrying this tag")
	flag.StringVar(&flagConfig.ReportPath, "report_path", "", "path for the JSON migration report")
	flag.StringVar(&flagConfig.OtelCollectorUrl, "otel_collector_url", "", "OpenTelemetry collector URL")

	flag.Parse()

	return configutil.Merge[Config](config, flagConfig)
}

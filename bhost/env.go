package bhost

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	port() int
	serviceName() string
	logLevel() zapcore.Level
	logFile() string
	otelExporter() string
	manifestPath() string
	middleware() []string
	service() string
	channelCapacity() int
	exchangeTimeout() time.Duration
}

// BaseEnvironment contains the environment variables every bpipe host reads.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	Port         int           `env:"BP_PORT" envDefault:"8080"`
	ServiceName  string        `env:"BP_SERVICE_NAME" envDefault:"bpipe"`
	LogLevel     zapcore.Level `env:"BP_LOG_LEVEL" envDefault:"info"`
	LogFile      string        `env:"BP_LOG_FILE"`
	OtelExporter string        `env:"BP_OTEL_EXPORTER" envDefault:"none"`
	// Manifest is the path of a TOML pipeline manifest. Its values take precedence over
	// BP_MIDDLEWARE, BP_SERVICE and BP_CHANNEL_CAPACITY.
	Manifest        string        `env:"BP_MANIFEST"`
	Middleware      []string      `env:"BP_MIDDLEWARE" envSeparator:","`
	Service         string        `env:"BP_SERVICE" envDefault:"echo"`
	ChannelCapacity int           `env:"BP_CHANNEL_CAPACITY" envDefault:"1"`
	ExchangeTimeout time.Duration `env:"BP_EXCHANGE_TIMEOUT" envDefault:"30s"`
}

func (e BaseEnvironment) port() int                      { return e.Port }
func (e BaseEnvironment) serviceName() string            { return e.ServiceName }
func (e BaseEnvironment) logLevel() zapcore.Level        { return e.LogLevel }
func (e BaseEnvironment) logFile() string                { return e.LogFile }
func (e BaseEnvironment) otelExporter() string           { return e.OtelExporter }
func (e BaseEnvironment) manifestPath() string           { return e.Manifest }
func (e BaseEnvironment) middleware() []string           { return e.Middleware }
func (e BaseEnvironment) service() string                { return e.Service }
func (e BaseEnvironment) channelCapacity() int           { return e.ChannelCapacity }
func (e BaseEnvironment) exchangeTimeout() time.Duration { return e.ExchangeTimeout }

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}
		return e, nil
	}
}

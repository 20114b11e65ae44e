package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"supportrelay/internal/config"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)

// SetupLogging configures the global logrus logger. The returned closer
// releases the log file when LOG_OUTPUT points at one.
func SetupLogging(cfg config.LoggingConfig) (io.Closer, error) {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		log.WithError(err).Warnf("cannot parse log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.999Z07:00"})
	} else {
		// millisecond precision helps when reading provider latencies
		formatter := new(log.TextFormatter)
		formatter.TimestampFormat = "2006-01-02T15:04:05.999Z07:00"
		formatter.FullTimestamp = true
		log.SetFormatter(formatter)
	}

	switch strings.ToLower(cfg.OutputPath) {
	case "", "stdout":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		log.SetOutput(f)
		return f, nil
	}
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewRequestID returns a fresh id for requests that arrive without one
func NewRequestID() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// Logger returns an entry tagged with the request id carried by ctx
func Logger(ctx context.Context) *log.Entry {
	entry := log.NewEntry(log.StandardLogger())
	if id := RequestIDFromContext(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry
}

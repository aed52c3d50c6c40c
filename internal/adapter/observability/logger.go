package observability

import (
	"log/slog"
	"os"

	"github.com/hirehub/profile-evaluator/internal/config"
)

// SetupLogger builds the process-wide JSON logger, stamped with the
// service name and environment. Development runs at debug level.
func SetupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}

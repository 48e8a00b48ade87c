package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Services receive it by injection; nothing
// logs through the global default.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

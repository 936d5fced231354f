package app

import (
	"strings"

	"github.com/gfranca/barberhub/pkg/logger"
)

const defaultLogLevel = "info"

// ConfigureLogging initialises the global logger. An empty level falls back
// to info so a blank config still produces output.
func ConfigureLogging(level string) error {
	if level = strings.TrimSpace(level); level == "" {
		level = defaultLogLevel
	}
	return logger.Init(level)
}

package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{"default", &Config{}, "info"},
		{"verbose", &Config{Verbose: true}, "debug"},
		{"quiet", &Config{Quiet: true}, "warn"},
		{"verbose and quiet", &Config{Verbose: true, Quiet: true}, "warn"},
		{"flag beats verbose", &Config{LogLevel: "error", Verbose: true}, "error"},
		{"flag beats quiet", &Config{LogLevel: "trace", Quiet: true}, "trace"},
		{"invalid flag", &Config{LogLevel: "loud"}, "info"},
		{"env when no flags", &Config{File: File{Log: LogConfig{Level: "warn"}}}, "warn"},
		{"verbose beats env", &Config{Verbose: true, File: File{Log: LogConfig{Level: "error"}}}, "debug"},
		{"invalid env", &Config{File: File{Log: LogConfig{Level: "chatty"}}}, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineLogLevel(tt.config))
		})
	}
}

func TestValidateLogLevel(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "error"} {
		assert.Equal(t, level, validateLogLevel(level))
	}
	assert.Equal(t, "info", validateLogLevel("WARN"))
	assert.Equal(t, "info", validateLogLevel(""))
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogLevel: "warn", File: File{Log: LogConfig{Output: "discard"}}}
	logger := NewLogger(cfg)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

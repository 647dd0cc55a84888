package config_test

import (
	"testing"

	"github.com/frappe/release/pkg/cli/config"
)

func TestLogger_Configure(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{name: "Valid level: debug", level: "debug"},
		{name: "Valid level: DEBUG (case insensitive)", level: "DEBUG"},
		{name: "Valid level: info", level: "info"},
		{name: "Valid level: warn", level: "warn"},
		{name: "Valid level: error", level: "error"},
		{name: "Invalid level: invalid", level: "invalid", wantErr: true},
		{name: "Invalid level: empty string", level: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &config.Logger{
				Level: tt.level,
				JSON:  false,
			}

			result, err := logger.Configure()
			if (err != nil) != tt.wantErr {
				t.Errorf("Configure() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && result == nil {
				t.Error("Configure() returned nil logger for valid input")
			}
		})
	}
}

func TestLogger_Configure_JSONFormat(t *testing.T) {
	for _, jsonFormat := range []bool{true, false} {
		logger := &config.Logger{
			Level: "info",
			JSON:  jsonFormat,
		}

		result, err := logger.Configure()
		if err != nil {
			t.Errorf("Configure() unexpected error = %v", err)
			continue
		}
		if result == nil {
			t.Error("Configure() returned nil logger")
			continue
		}

		result.Info("logger smoke test", "json", jsonFormat)
	}
}

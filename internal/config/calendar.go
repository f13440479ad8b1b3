package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hedgedesk/exposure-engine/internal/mtm"
)

// CalendarFile is the on-disk shape of a holiday calendar.
type CalendarFile struct {
	Name     string   `yaml:"name" json:"name"`
	Holidays []string `yaml:"holidays" json:"holidays"`
}

// LoadCalendar reads a holiday calendar (YAML or JSON). An empty path yields
// a nil calendar, which skips weekends only.
func LoadCalendar(path string) (*mtm.Calendar, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}

	file := &CalendarFile{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, file); err != nil {
		if err := json.Unmarshal(data, file); err != nil {
			return nil, fmt.Errorf("parse calendar (tried YAML and JSON): %w", err)
		}
	}

	cal, err := mtm.NewCalendar(file.Holidays)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar %s: %w", path, err)
	}
	return cal, nil
}

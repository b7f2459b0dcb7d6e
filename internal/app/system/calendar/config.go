package calendar

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DateRange is an inclusive range of calendar dates in DateLayout.
type DateRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Config describes a Calendar. It can be loaded from a YAML file:
//
//	timezone: Europe/Rome
//	race_date: "2027-07-01"
//	holidays:
//	  - {start: "2025-12-25", end: "2026-01-03"}
type Config struct {
	TimeZone string      `yaml:"timezone"`
	RaceDate string      `yaml:"race_date"`
	Holidays []DateRange `yaml:"holidays"`
}

// DefaultConfig returns the season calendar used when no file is configured.
func DefaultConfig() Config {
	return Config{
		TimeZone: "Europe/Rome",
		RaceDate: "2027-07-01",
		Holidays: []DateRange{
			{Start: "2025-12-25", End: "2026-01-03"},
			{Start: "2026-04-03", End: "2026-04-07"},
			{Start: "2026-12-25", End: "2027-01-03"},
			{Start: "2027-03-26", End: "2027-03-30"},
		},
	}
}

// LoadFile reads a YAML calendar file. Fields missing from the file keep
// their DefaultConfig values; a holidays list in the file replaces the
// default list entirely.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("calendar: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("calendar: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load returns the calendar described by path, or the default calendar
// when path is empty.
func Load(path string) (*Calendar, error) {
	if path == "" {
		return New(DefaultConfig())
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

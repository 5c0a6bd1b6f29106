package story

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Level is a CEFR proficiency tier. Ordering follows Levels.
type Level string

const (
	LevelA1 Level = "a1"
	LevelA2 Level = "a2"
	LevelB1 Level = "b1"
	LevelB2 Level = "b2"
	LevelC1 Level = "c1"
	LevelC2 Level = "c2"
)

// Levels lists all tiers from easiest to hardest.
var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Levels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// WordBand is the allowed word-count range for generated story text at a
// level. Content outside the band is rejected before any synthesis spend.
type WordBand struct {
	MinWords int `yaml:"min_words"`
	MaxWords int `yaml:"max_words"`
}

var defaultBands = map[Level]WordBand{
	LevelA1: {MinWords: 150, MaxWords: 300},
	LevelA2: {MinWords: 200, MaxWords: 400},
	LevelB1: {MinWords: 300, MaxWords: 550},
	LevelB2: {MinWords: 450, MaxWords: 700},
	LevelC1: {MinWords: 600, MaxWords: 900},
	LevelC2: {MinWords: 750, MaxWords: 1100},
}

// Bands returns the per-level word bands, optionally overridden by the yaml
// file at LEVELS_CONFIG_PATH. Levels missing from the file keep their
// defaults.
func Bands() (map[Level]WordBand, error) {
	bands := make(map[Level]WordBand, len(defaultBands))
	for k, v := range defaultBands {
		bands[k] = v
	}

	path := strings.TrimSpace(os.Getenv("LEVELS_CONFIG_PATH"))
	if path == "" {
		return bands, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read levels config: %w", err)
	}
	var overrides map[string]WordBand
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse levels config: %w", err)
	}
	for name, band := range overrides {
		lvl, err := ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("levels config: %w", err)
		}
		if band.MinWords <= 0 || band.MaxWords < band.MinWords {
			return nil, fmt.Errorf("levels config: invalid band for %s: %d-%d", lvl, band.MinWords, band.MaxWords)
		}
		bands[lvl] = band
	}
	return bands, nil
}

// BandFor returns the word band for a level, falling back to defaults for an
// unknown entry.
func BandFor(bands map[Level]WordBand, level Level) WordBand {
	if b, ok := bands[level]; ok {
		return b
	}
	return defaultBands[level]
}

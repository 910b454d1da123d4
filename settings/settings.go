// Package settings loads the operator-editable YAML file controlling the
// built-in handlers: TTS behaviour, sound output and chat commands.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the root of the settings file.
type Settings struct {
	TTS      TTSSettings       `yaml:"tts,omitempty"`
	Sounds   SoundSettings     `yaml:"sounds,omitempty"`
	Commands map[string]string `yaml:"commands,omitempty"`
}

// TTSSettings controls the chat text-to-speech pipeline.
type TTSSettings struct {
	SoundOutput   string `yaml:"soundOutput,omitempty"`
	IgnoreReplies *bool  `yaml:"ignoreReplies,omitempty"`
	IgnoreEmojis  *bool  `yaml:"ignoreEmojis,omitempty"`
	// Blacklist lists usernames whose messages are never read out.
	Blacklist []string `yaml:"blacklist,omitempty"`
	Limits    Limits   `yaml:"limits,omitempty"`
	// VoiceOverrides pins a username to a voice instead of the
	// deterministic per-user pick.
	VoiceOverrides map[string]string `yaml:"voiceOverrides,omitempty"`
	// PitchOverrides pins a username to a pitch shift in [-1, 1].
	PitchOverrides map[string]float64 `yaml:"pitchOverrides,omitempty"`
	// WordReplacements substitutes whole words before synthesis.
	WordReplacements map[string]string `yaml:"wordReplacements,omitempty"`
	// RegexReplacements applies pattern substitutions after word ones.
	RegexReplacements map[string]string `yaml:"regexReplacements,omitempty"`
}

// Limits bounds a single TTS request.
type Limits struct {
	MaxWordCount  int `yaml:"maxWordCount,omitempty"`
	MaxWordLength int `yaml:"maxWordLength,omitempty"`
}

// SoundSettings controls the play-sound rewards.
type SoundSettings struct {
	SoundOutput string `yaml:"soundOutput,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// Defaults returns the settings used when the file is absent or a section
// is left out.
func Defaults() Settings {
	return Settings{
		TTS: TTSSettings{
			SoundOutput:   "default",
			IgnoreReplies: boolPtr(true),
			IgnoreEmojis:  boolPtr(true),
			Limits: Limits{
				MaxWordCount:  100,
				MaxWordLength: 15,
			},
			WordReplacements: map[string]string{
				"im":     "I'm",
				"theres": "there's",
				"tho":    "though",
				"welp":   "whelp",
				"ik":     "I know",
				"ew":     "eww",
				"uwu":    "oo woo",
				"sus":    "suss",
			},
			RegexReplacements: map[string]string{
				`^[\? ]+$`: "huh?",
			},
		},
		Sounds:   SoundSettings{SoundOutput: "default"},
		Commands: map[string]string{},
	}
}

// Load reads the settings file, filling defaults for anything absent.
// A missing file produces pure defaults, not an error.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Defaults(), err
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("failed to parse settings: %w", err)
	}
	applyDefaults(&s)
	return s, nil
}

func applyDefaults(s *Settings) {
	d := Defaults()
	if s.TTS.SoundOutput == "" {
		s.TTS.SoundOutput = d.TTS.SoundOutput
	}
	if s.TTS.IgnoreReplies == nil {
		s.TTS.IgnoreReplies = d.TTS.IgnoreReplies
	}
	if s.TTS.IgnoreEmojis == nil {
		s.TTS.IgnoreEmojis = d.TTS.IgnoreEmojis
	}
	if s.TTS.Limits.MaxWordCount == 0 {
		s.TTS.Limits.MaxWordCount = d.TTS.Limits.MaxWordCount
	}
	if s.TTS.Limits.MaxWordLength == 0 {
		s.TTS.Limits.MaxWordLength = d.TTS.Limits.MaxWordLength
	}
	if s.TTS.WordReplacements == nil {
		s.TTS.WordReplacements = d.TTS.WordReplacements
	}
	if s.TTS.RegexReplacements == nil {
		s.TTS.RegexReplacements = d.TTS.RegexReplacements
	}
	if s.Sounds.SoundOutput == "" {
		s.Sounds.SoundOutput = d.Sounds.SoundOutput
	}
	if s.Commands == nil {
		s.Commands = map[string]string{}
	}
}

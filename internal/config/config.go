// Package config loads the YAML configuration for the speech pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration.
type Config struct {
	Models   ModelsConfig   `yaml:"models"`
	Audio    AudioConfig    `yaml:"audio"`
	Listener ListenerConfig `yaml:"listener"`
	Chat     ChatConfig     `yaml:"chat"`
	LogLevel string         `yaml:"log_level"`
}

// ModelsConfig selects model artifacts by catalog ID and where they live.
type ModelsConfig struct {
	Dir       string `yaml:"dir"`
	STTModel  string `yaml:"stt_model"`
	TTSModel  string `yaml:"tts_model"`
	ChatModel string `yaml:"chat_model"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
}

// ListenerConfig tunes utterance segmentation and delivery.
type ListenerConfig struct {
	EnergyThreshold float64 `yaml:"energy_threshold"`
	MinSpeechMs     int     `yaml:"min_speech_ms"`
	MinSilenceMs    int     `yaml:"min_silence_ms"`
	PrerollMs       int     `yaml:"preroll_ms"`
	MaxSegmentMs    int     `yaml:"max_segment_ms"`
	QueueDepth      int     `yaml:"queue_depth"`
}

// ChatConfig points at the local completion endpoint.
type ChatConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "speechcore")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns where model artifacts are stored by default.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "speechcore", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			Dir:       DefaultModelsDir(),
			STTModel:  "zipformer-en",
			TTSModel:  "vits-piper-en-amy",
			ChatModel: "chat-qwen2.5-0.5b",
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Listener: ListenerConfig{
			EnergyThreshold: 0.015,
			MinSpeechMs:     200,
			MinSilenceMs:    700,
			PrerollMs:       300,
			MaxSegmentMs:    30000,
			QueueDepth:      8,
		},
		Chat: ChatConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "qwen2.5:0.5b",
			MaxTokens:   256,
			Temperature: 0.7,
			TimeoutSec:  30,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in models.dir is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Models.Dir = expandTilde(cfg.Models.Dir)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Models.Dir == "" {
		return fmt.Errorf("models.dir must not be empty")
	}
	if c.Models.STTModel == "" {
		return fmt.Errorf("models.stt_model must not be empty")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("audio.channels must be 1 (mono), got %d", c.Audio.Channels)
	}

	if c.Listener.EnergyThreshold <= 0 {
		return fmt.Errorf("listener.energy_threshold must be > 0")
	}
	if c.Listener.MinSpeechMs <= 0 || c.Listener.MinSilenceMs <= 0 {
		return fmt.Errorf("listener.min_speech_ms and listener.min_silence_ms must be > 0")
	}
	if c.Listener.PrerollMs < 0 {
		return fmt.Errorf("listener.preroll_ms must be >= 0, got %d", c.Listener.PrerollMs)
	}
	if c.Listener.MaxSegmentMs < 0 {
		return fmt.Errorf("listener.max_segment_ms must be >= 0, got %d", c.Listener.MaxSegmentMs)
	}
	if c.Listener.QueueDepth <= 0 {
		return fmt.Errorf("listener.queue_depth must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

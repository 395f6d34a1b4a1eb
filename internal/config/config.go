package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	libraryPattern = "Library/Group Containers/*.groups.com.apple.podcasts/Documents/MTLibrary.sqlite"
	cachePattern   = "Library/Group Containers/*.groups.com.apple.podcasts/Library/Cache/Assets/TTML"
)

type Config struct {
	Gemini     GeminiConfig     `yaml:"gemini"`
	Paths      PathsConfig      `yaml:"paths"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Watch      WatchConfig      `yaml:"watch"`
	Player     PlayerConfig     `yaml:"player"`
}

type GeminiConfig struct {
	APIKeys             []string `yaml:"api_keys"`
	Model               string   `yaml:"model"`
	MaxRetries          int      `yaml:"max_retries"`
	Temperature         *float32 `yaml:"temperature"`
	MaxOutputTokens     int32    `yaml:"max_output_tokens"`
	MaxTranscriptTokens int      `yaml:"max_transcript_tokens"`
	PromptFile          string   `yaml:"prompt_file"`
}

type PathsConfig struct {
	Library         string `yaml:"library"`
	TranscriptCache string `yaml:"transcript_cache"`
	Ledger          string `yaml:"ledger"`
	Output          string `yaml:"output"`
}

type TranscriptConfig struct {
	PreserveSpeakers *bool         `yaml:"preserve_speakers"`
	PauseThreshold   time.Duration `yaml:"pause_threshold"`
}

type DiscoveryConfig struct {
	Days    int    `yaml:"days"`
	Channel string `yaml:"channel"`
}

type OutputConfig struct {
	Format string `yaml:"format"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type PlayerConfig struct {
	FetchMissing bool          `yaml:"fetch_missing"`
	Wait         time.Duration `yaml:"wait"`
	Timeout      time.Duration `yaml:"timeout"`
	Region       string        `yaml:"region"`
}

// Load reads the YAML file at path, applies environment overrides and fills
// defaults. An empty path yields a config built from defaults and the
// environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(expandPath(path))
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath is ~/.afterthought/config.yaml when it exists, else "".
func DefaultPath() string {
	path := expandPath("~/.afterthought/config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (c *Config) applyEnv() {
	if keys := splitKeys(os.Getenv("GEMINI_API_KEYS")); len(keys) > 0 {
		c.Gemini.APIKeys = keys
	} else if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		c.Gemini.APIKeys = []string{key}
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("AFTERTHOUGHT_OUTPUT"); v != "" {
		c.Paths.Output = v
	}
	if v := os.Getenv("APPLE_PODCASTS_DB_PATH"); v != "" {
		c.Paths.Library = v
	}
	if v := os.Getenv("TTML_CACHE_PATH"); v != "" {
		c.Paths.TranscriptCache = v
	}
	if v := os.Getenv("TRACKING_DB_PATH"); v != "" {
		c.Paths.Ledger = v
	}
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Validate checks ranges and fills defaults. Paths are expanded and the
// Apple Podcasts locations auto-detected when unset.
func (c *Config) Validate() error {
	if c.Discovery.Days < 0 || c.Discovery.Days > 365 {
		return fmt.Errorf("discovery.days must be between 1 and 365")
	}
	if c.Gemini.MaxRetries < 0 || c.Gemini.MaxRetries > 10 {
		return fmt.Errorf("gemini.max_retries must be between 1 and 10")
	}
	if t := c.Gemini.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("gemini.temperature must be between 0 and 2")
	}
	if c.Transcript.PauseThreshold < 0 {
		return fmt.Errorf("transcript.pause_threshold must not be negative")
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "markdown", "md", "docx", "both":
	default:
		return fmt.Errorf("output.format must be markdown, docx or both")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	for _, key := range c.Gemini.APIKeys {
		if key == "your_api_key_here" {
			return fmt.Errorf("gemini.api_keys contains a placeholder key")
		}
	}

	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.MaxRetries == 0 {
		c.Gemini.MaxRetries = 3
	}
	if c.Gemini.Temperature == nil {
		temperature := float32(0.3)
		c.Gemini.Temperature = &temperature
	}
	if c.Gemini.MaxOutputTokens == 0 {
		c.Gemini.MaxOutputTokens = 2048
	}
	if c.Gemini.MaxTranscriptTokens == 0 {
		c.Gemini.MaxTranscriptTokens = 500_000
	}
	if c.Transcript.PreserveSpeakers == nil {
		preserve := true
		c.Transcript.PreserveSpeakers = &preserve
	}
	if c.Transcript.PauseThreshold == 0 {
		c.Transcript.PauseThreshold = 2 * time.Second
	}
	if c.Discovery.Days == 0 {
		c.Discovery.Days = 7
	}
	if c.Output.Format == "" {
		c.Output.Format = "markdown"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 30 * time.Second
	}
	if c.Player.Wait == 0 {
		c.Player.Wait = 10 * time.Second
	}
	if c.Player.Timeout == 0 {
		c.Player.Timeout = 30 * time.Second
	}
	if c.Player.Region == "" {
		c.Player.Region = "us"
	}
	if c.Paths.Ledger == "" {
		c.Paths.Ledger = "~/.afterthought/tracking.db"
	}

	c.Paths.Ledger = expandPath(c.Paths.Ledger)
	c.Paths.Output = expandPath(c.Paths.Output)
	c.Paths.Library = expandPath(c.Paths.Library)
	c.Paths.TranscriptCache = expandPath(c.Paths.TranscriptCache)
	c.Gemini.PromptFile = expandPath(c.Gemini.PromptFile)

	if c.Paths.Library == "" {
		c.Paths.Library = detect(libraryPattern)
	}
	if c.Paths.TranscriptCache == "" {
		c.Paths.TranscriptCache = detect(cachePattern)
	}

	return nil
}

// ValidateRun checks what summarizing runs need beyond Validate.
func (c *Config) ValidateRun() error {
	if len(c.Gemini.APIKeys) == 0 {
		return errors.New("a Gemini API key is required (set GEMINI_API_KEY or gemini.api_keys); get one at https://aistudio.google.com/app/apikey")
	}
	if c.Paths.Output == "" {
		return errors.New("paths.output is required (or set AFTERTHOUGHT_OUTPUT)")
	}
	return c.ValidateLibrary()
}

// ValidateLibrary checks that the podcast library and transcript cache exist.
func (c *Config) ValidateLibrary() error {
	if c.Paths.Library == "" {
		return errors.New("could not auto-detect the Apple Podcasts database; set paths.library")
	}
	if _, err := os.Stat(c.Paths.Library); err != nil {
		return fmt.Errorf("apple podcasts database: %w", err)
	}
	if c.Paths.TranscriptCache == "" {
		return errors.New("could not auto-detect the TTML transcript cache; set paths.transcript_cache")
	}
	if _, err := os.Stat(c.Paths.TranscriptCache); err != nil {
		return fmt.Errorf("transcript cache: %w", err)
	}
	return nil
}

// Prompt returns the custom prompt template, or "" for the built-in one.
func (c GeminiConfig) Prompt() (string, error) {
	if c.PromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.PromptFile)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	prompt := string(data)
	if !strings.Contains(prompt, "{transcript}") {
		return "", fmt.Errorf("prompt file %s has no {transcript} placeholder", c.PromptFile)
	}
	return prompt, nil
}

// Preserve reports the effective preserve_speakers setting.
func (c TranscriptConfig) Preserve() bool {
	return c.PreserveSpeakers == nil || *c.PreserveSpeakers
}

func expandPath(p string) string {
	if p == "" {
		return ""
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func detect(pattern string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	matches, err := filepath.Glob(filepath.Join(home, pattern))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

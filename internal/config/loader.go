package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nclamvn/teacherAI/internal/scoring"
	"github.com/nclamvn/teacherAI/internal/speaking"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8000"
	DefaultMaxUploadMB     = 10
	DefaultShutdownTimeout = 15 * time.Second
	DefaultLanguage        = "en"
	DefaultVoiceEN         = "nova"
	DefaultVoiceVI         = "alloy"
	DefaultMediaDir        = "media/tts"
	DefaultMediaURLPrefix  = "/media"
)

// Environment variables that override secrets in the file.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
	EnvDeepgramKey   = "DEEPGRAM_API_KEY"
	EnvPostgresDSN   = "TEACHERAI_POSTGRES_DSN"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"openai", "deepgram", "whisper"},
	"tts": {"openai", "elevenlabs"},
}

// envKeys maps provider names to the variable holding their API key.
var envKeys = map[string]string{
	"openai":     EnvOpenAIKey,
	"elevenlabs": EnvElevenLabsKey,
	"deepgram":   EnvDeepgramKey,
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides and defaults, and validates the result. An empty document
// yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg, os.Getenv)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv copies secrets from the environment into cfg. API keys fill only
// entries that leave api_key empty; TEACHERAI_POSTGRES_DSN always wins.
// Backends reached through any-llm read their own variables.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	fill := func(e *ProviderEntry) {
		if e.APIKey != "" {
			return
		}
		if v, ok := envKeys[e.Name]; ok {
			e.APIKey = getenv(v)
		}
	}
	fill(&cfg.Providers.LLM)
	fill(&cfg.Providers.STT)
	fill(&cfg.Providers.TTS)
	for _, list := range [][]ProviderEntry{cfg.Providers.Fallbacks.LLM, cfg.Providers.Fallbacks.STT, cfg.Providers.Fallbacks.TTS} {
		for i := range list {
			fill(&list[i])
		}
	}
	if dsn := getenv(EnvPostgresDSN); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
}

// ApplyDefaults fills zero values.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.MaxUploadMB == 0 {
		s.MaxUploadMB = DefaultMaxUploadMB
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	sc := &cfg.Scoring
	if sc.WordWeight == 0 && sc.SecondaryWeight == 0 {
		sc.WordWeight = speaking.DefaultWordWeight
		sc.SecondaryWeight = speaking.DefaultSecondaryWeight
	}

	f := &cfg.Feedback
	if f.Language == "" {
		f.Language = DefaultLanguage
	}
	if f.VoiceEN == "" {
		f.VoiceEN = DefaultVoiceEN
	}
	if f.VoiceVI == "" {
		f.VoiceVI = DefaultVoiceVI
	}

	if cfg.Media.Dir == "" {
		cfg.Media.Dir = DefaultMediaDir
	}
	if cfg.Media.URLPrefix == "" {
		cfg.Media.URLPrefix = DefaultMediaURLPrefix
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", cfg.Server.MaxUploadMB))
	}
	if t := cfg.Server.TLS; t != nil && (t.CertFile == "" || t.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; read-aloud and transcribe requests will fail")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; feedback will use rule-based texts")
	}
	for kind, list := range map[string][]ProviderEntry{
		"llm": cfg.Providers.Fallbacks.LLM,
		"stt": cfg.Providers.Fallbacks.STT,
		"tts": cfg.Providers.Fallbacks.TTS,
	} {
		for i, e := range list {
			if e.Name == "" {
				errs = append(errs, fmt.Errorf("providers.fallbacks.%s[%d].name is required", kind, i))
				continue
			}
			validateProviderName(kind, e.Name)
		}
	}

	// Resilience
	if r := cfg.Resilience; r.MaxFailures < 0 || r.HalfOpenMax < 0 || r.ResetTimeout < 0 {
		errs = append(errs, errors.New("resilience values must not be negative"))
	}

	// Scoring
	sc := cfg.Scoring
	if _, err := scoring.ParseReplaceCounting(sc.ReplaceCounting); err != nil {
		errs = append(errs, fmt.Errorf("scoring.replace_counting: %w", err))
	}
	if _, err := speaking.ParseSecondarySignal(sc.SecondarySignal); err != nil {
		errs = append(errs, fmt.Errorf("scoring.secondary_signal: %w", err))
	}
	if sc.WordWeight < 0 || sc.SecondaryWeight < 0 {
		errs = append(errs, fmt.Errorf("scoring weights must not be negative (word_weight %.2f, secondary_weight %.2f)", sc.WordWeight, sc.SecondaryWeight))
	}
	for i, f := range sc.Fillers {
		if strings.ContainsAny(strings.TrimSpace(f), " \t") {
			errs = append(errs, fmt.Errorf("scoring.fillers[%d] %q contains whitespace; use filler_phrases", i, f))
		}
	}

	// Feedback
	fb := cfg.Feedback
	if fb.VoiceSpeed != 0 && (fb.VoiceSpeed < 0.25 || fb.VoiceSpeed > 4.0) {
		errs = append(errs, fmt.Errorf("feedback.voice_speed %.2f is out of range [0.25, 4.0]", fb.VoiceSpeed))
	}
	if fb.TrickyWords < 0 {
		errs = append(errs, fmt.Errorf("feedback.tricky_words %d must not be negative", fb.TrickyWords))
	}
	if fb.Temperature < 0 || fb.Temperature > 2 {
		errs = append(errs, fmt.Errorf("feedback.temperature %.2f is out of range [0, 2]", fb.Temperature))
	}
	if fb.MispronunciationThreshold < 0 || fb.MispronunciationThreshold > 1 {
		errs = append(errs, fmt.Errorf("feedback.mispronunciation_threshold %.2f is out of range [0, 1]", fb.MispronunciationThreshold))
	}

	// Media
	if p := cfg.Media.URLPrefix; p != "" && (!strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/")) {
		errs = append(errs, fmt.Errorf("media.url_prefix %q must start with / and not end with /", p))
	}

	if cfg.Storage.PostgresDSN == "" && cfg.Storage.AttemptsFile == "" {
		slog.Warn("storage is not configured; attempts will not be recorded")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

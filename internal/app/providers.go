package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/nclamvn/teacherAI/internal/config"
	"github.com/nclamvn/teacherAI/internal/observe"
	"github.com/nclamvn/teacherAI/internal/resilience"
	"github.com/nclamvn/teacherAI/pkg/provider/llm"
	"github.com/nclamvn/teacherAI/pkg/provider/llm/anyllm"
	oaillm "github.com/nclamvn/teacherAI/pkg/provider/llm/openai"
	"github.com/nclamvn/teacherAI/pkg/provider/stt"
	"github.com/nclamvn/teacherAI/pkg/provider/stt/deepgram"
	oaistt "github.com/nclamvn/teacherAI/pkg/provider/stt/openai"
	"github.com/nclamvn/teacherAI/pkg/provider/stt/whisper"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
	"github.com/nclamvn/teacherAI/pkg/provider/tts/elevenlabs"
	oaitts "github.com/nclamvn/teacherAI/pkg/provider/tts/openai"
)

// Providers holds one interface value per collaborator. Nil means the
// provider is not configured. Configured providers are wrapped in
// resilience fallbacks, so each value also reports Healthy().
type Providers struct {
	LLM llm.TextGenerator
	STT stt.SpeechTranscriber
	TTS tts.SpeechSynthesizer
}

// RegisterBuiltinProviders adds every provider shipped with teacherAI to reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── LLM ──────────────────────────────────────────────────────────────
	reg.RegisterLLM("openai", func(e config.ProviderEntry) (llm.TextGenerator, error) {
		var opts []oaillm.Option
		if e.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(e.BaseURL))
		}
		if org := optString(e.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		if e.Timeout > 0 {
			opts = append(opts, oaillm.WithTimeout(e.Timeout))
		}
		// Retries are the fallback group's job.
		opts = append(opts, oaillm.WithMaxRetries(0))
		return oaillm.New(e.APIKey, e.Model, opts...)
	})
	for _, name := range anyllm.SupportedBackends() {
		if name == "openai" {
			continue
		}
		reg.RegisterLLM(name, func(e config.ProviderEntry) (llm.TextGenerator, error) {
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(name, e.Model, opts...)
		})
	}

	// ── STT ──────────────────────────────────────────────────────────────
	reg.RegisterSTT("openai", func(e config.ProviderEntry) (stt.SpeechTranscriber, error) {
		var opts []oaistt.Option
		if e.Model != "" {
			opts = append(opts, oaistt.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(e.BaseURL))
		}
		if e.Timeout > 0 {
			opts = append(opts, oaistt.WithTimeout(e.Timeout))
		}
		if lang := optString(e.Options, "language"); lang != "" {
			opts = append(opts, oaistt.WithLanguage(lang))
		}
		return oaistt.New(e.APIKey, opts...)
	})
	reg.RegisterSTT("deepgram", func(e config.ProviderEntry) (stt.SpeechTranscriber, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(e.BaseURL))
		}
		if lang := optString(e.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(e.APIKey, opts...)
	})
	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.SpeechTranscriber, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if e.Timeout > 0 {
			opts = append(opts, whisper.WithTimeout(e.Timeout))
		}
		if lang := optString(e.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(e.BaseURL, opts...)
	})

	// ── TTS ──────────────────────────────────────────────────────────────
	reg.RegisterTTS("openai", func(e config.ProviderEntry) (tts.SpeechSynthesizer, error) {
		var opts []oaitts.Option
		if e.Model != "" {
			opts = append(opts, oaitts.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(e.BaseURL))
		}
		if e.Timeout > 0 {
			opts = append(opts, oaitts.WithTimeout(e.Timeout))
		}
		return oaitts.New(e.APIKey, opts...)
	})
	reg.RegisterTTS("elevenlabs", func(e config.ProviderEntry) (tts.SpeechSynthesizer, error) {
		var opts []elevenlabs.Option
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(e.BaseURL))
		}
		if e.Timeout > 0 {
			opts = append(opts, elevenlabs.WithTimeout(e.Timeout))
		}
		if f := optString(e.Options, "output_format"); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})

	for _, kind := range []string{"llm", "stt", "tts"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// BuildProviders creates the configured providers and wraps each kind in a
// resilience fallback group reporting to m. An empty primary name leaves
// that kind nil; a provider that cannot be created is an error.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	ps := &Providers{}
	fbCfg := func(kind string) resilience.FallbackConfig {
		return resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{
				MaxFailures:  cfg.Resilience.MaxFailures,
				ResetTimeout: cfg.Resilience.ResetTimeout,
				HalfOpenMax:  cfg.Resilience.HalfOpenMax,
				OnStateChange: func(name string, _, to resilience.State) {
					m.RecordCircuitTransition(context.Background(), kind, name, to.String())
				},
			},
			Observe: m.ProviderObserver(kind),
		}
	}

	// ── LLM ──────────────────────────────────────────────────────────────
	if e := cfg.Providers.LLM; e.Name != "" {
		p, err := reg.CreateLLM(e)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", e.Name, err)
		}
		group := resilience.NewLLMFallback(p, e.Name, fbCfg(observe.KindLLM))
		for _, fe := range cfg.Providers.Fallbacks.LLM {
			fp, err := reg.CreateLLM(fe)
			if err != nil {
				if skipFallback("llm", fe, err) {
					continue
				}
				return nil, fmt.Errorf("create llm fallback %q: %w", fe.Name, err)
			}
			group.AddFallback(fe.Name, fp)
		}
		ps.LLM = group
		slog.Info("provider created", "kind", "llm", "name", e.Name, "fallbacks", len(cfg.Providers.Fallbacks.LLM))
	}

	// ── STT ──────────────────────────────────────────────────────────────
	if e := cfg.Providers.STT; e.Name != "" {
		p, err := reg.CreateSTT(e)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", e.Name, err)
		}
		group := resilience.NewSTTFallback(p, e.Name, fbCfg(observe.KindSTT))
		for _, fe := range cfg.Providers.Fallbacks.STT {
			fp, err := reg.CreateSTT(fe)
			if err != nil {
				if skipFallback("stt", fe, err) {
					continue
				}
				return nil, fmt.Errorf("create stt fallback %q: %w", fe.Name, err)
			}
			group.AddFallback(fe.Name, fp)
		}
		ps.STT = group
		slog.Info("provider created", "kind", "stt", "name", e.Name, "fallbacks", len(cfg.Providers.Fallbacks.STT))
	}

	// ── TTS ──────────────────────────────────────────────────────────────
	if e := cfg.Providers.TTS; e.Name != "" {
		p, err := reg.CreateTTS(e)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", e.Name, err)
		}
		group := resilience.NewTTSFallback(p, e.Name, fbCfg(observe.KindTTS))
		for _, fe := range cfg.Providers.Fallbacks.TTS {
			fp, err := reg.CreateTTS(fe)
			if err != nil {
				if skipFallback("tts", fe, err) {
					continue
				}
				return nil, fmt.Errorf("create tts fallback %q: %w", fe.Name, err)
			}
			group.AddFallback(fe.Name, fp, voiceMap(fe.Options))
		}
		ps.TTS = group
		slog.Info("provider created", "kind", "tts", "name", e.Name, "fallbacks", len(cfg.Providers.Fallbacks.TTS))
	}

	return ps, nil
}

// skipFallback logs and reports true for fallbacks that are merely
// unregistered. The primary is still usable without them.
func skipFallback(kind string, e config.ProviderEntry, err error) bool {
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		return false
	}
	slog.Warn("fallback provider not registered, skipping", "kind", kind, "name", e.Name)
	return true
}

// voiceMap reads options.voices, mapping the primary's voice IDs to this
// backend's voices.
func voiceMap(opts map[string]any) map[string]tts.Voice {
	raw, ok := opts["voices"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]tts.Voice, len(raw))
	for from, to := range raw {
		if id, ok := to.(string); ok && id != "" {
			out[from] = tts.Voice{ID: id}
		}
	}
	return out
}

// optString extracts a string option from a provider Options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

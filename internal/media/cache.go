package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// flightTimeout bounds a shared synthesis. It runs detached from the
// callers so one caller giving up does not fail the others.
const flightTimeout = 2 * time.Minute

// CachedSynthesizer turns text into a published audio URL, synthesizing only
// on a cache miss. Concurrent requests for the same text and voice share one
// provider call.
type CachedSynthesizer struct {
	store    *Store
	synth    tts.SpeechSynthesizer
	onLookup func(ctx context.Context, hit bool)
	flight   singleflight.Group
}

// CacheOption configures a [CachedSynthesizer].
type CacheOption func(*CachedSynthesizer)

// WithLookupHook registers fn to be called after every cache lookup.
func WithLookupHook(fn func(ctx context.Context, hit bool)) CacheOption {
	return func(c *CachedSynthesizer) { c.onLookup = fn }
}

// NewCachedSynthesizer returns a CachedSynthesizer storing audio from synth
// in store.
func NewCachedSynthesizer(store *Store, synth tts.SpeechSynthesizer, opts ...CacheOption) *CachedSynthesizer {
	c := &CachedSynthesizer{store: store, synth: synth}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Store returns the underlying file store.
func (c *CachedSynthesizer) Store() *Store { return c.store }

// SynthesizeURL returns the URL of text spoken by voice, synthesizing and
// caching it first when needed.
func (c *CachedSynthesizer) SynthesizeURL(ctx context.Context, text string, voice tts.Voice) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", tts.ErrEmptyText
	}
	key := Key(text, voice.Key())

	if c.store.Exists(key) {
		c.lookup(ctx, true)
		slog.Debug("media: tts cache hit", "key", key, "voice", voice.ID)
		return c.store.URL(key), nil
	}
	c.lookup(ctx, false)

	ch := c.flight.DoChan(key, func() (any, error) {
		if c.store.Exists(key) {
			return nil, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		audio, err := c.synth.Synthesize(fctx, text, voice)
		if err != nil {
			return nil, fmt.Errorf("media: synthesize: %w", err)
		}
		if err := c.store.Put(key, audio); err != nil {
			return nil, err
		}
		slog.Debug("media: tts cached", "key", key, "voice", voice.ID, "bytes", len(audio))
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("media: synthesize: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
	}
	return c.store.URL(key), nil
}

func (c *CachedSynthesizer) lookup(ctx context.Context, hit bool) {
	if c.onLookup != nil {
		c.onLookup(ctx, hit)
	}
}

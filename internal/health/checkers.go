package health

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Pinger is implemented by storage backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker returns a required checker that pings p.
func PingChecker(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// DirWritable returns a required checker that creates and removes a probe
// file in dir.
func DirWritable(name, dir string) Checker {
	return Checker{Name: name, Check: func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return fmt.Errorf("write %s: %w", dir, err)
		}
		name := f.Name()
		return errors.Join(f.Close(), os.Remove(name))
	}}
}

// ProviderHealth is implemented by the resilience fallback wrappers.
type ProviderHealth interface {
	// Healthy reports whether at least one provider can take calls.
	Healthy() bool
}

// ProvidersChecker fails when every provider behind p has an open circuit.
func ProvidersChecker(name string, p ProviderHealth, optional bool) Checker {
	return Checker{Name: name, Optional: optional, Check: func(context.Context) error {
		if p.Healthy() {
			return nil
		}
		return errNoProvider
	}}
}

var errNoProvider = errors.New("all providers have open circuits")

package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ScoringChanged and FeedbackChanged mark sections that are applied
	// without restart by rebuilding the speaking pipeline.
	ScoringChanged  bool
	FeedbackChanged bool

	// RestartRequired names changed sections that only take effect after a
	// restart.
	RestartRequired []string
}

// HotReload reports whether the pipeline must be rebuilt.
func (d ConfigDiff) HotReload() bool {
	return d.ScoringChanged || d.FeedbackChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.ScoringChanged = !reflect.DeepEqual(old.Scoring, new.Scoring)
	d.FeedbackChanged = old.Feedback != new.Feedback

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Resilience != new.Resilience {
		d.RestartRequired = append(d.RestartRequired, "resilience")
	}
	if old.Media != new.Media {
		d.RestartRequired = append(d.RestartRequired, "media")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	slices.Sort(d.RestartRequired)
	return d
}

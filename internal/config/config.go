// Package config holds the feature and provider settings of the grouping
// engine and persists them in the settings table.
package config

import (
	"context"
	"time"
)

// Delays are in milliseconds, the unit the extension stores them in.
type Delays struct {
	AutoGroupFallback int `json:"autoGroupFallback" yaml:"autoGroupFallback"`
	RegroupDelay      int `json:"regroupDelay" yaml:"regroupDelay"`
	RetryDelay        int `json:"retryDelay" yaml:"retryDelay"`
	APIRetryBackoff   int `json:"apiRetryBackoff" yaml:"apiRetryBackoff"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Fallback is how long a new tab may take to finish loading before it is
// evaluated anyway.
func (d Delays) Fallback() time.Duration { return ms(d.AutoGroupFallback) }

// Regroup is the debounce applied to URL changes of grouped tabs.
func (d Delays) Regroup() time.Duration { return ms(d.RegroupDelay) }

// Retry spaces group property update attempts.
func (d Delays) Retry() time.Duration { return ms(d.RetryDelay) }

// Backoff is the base delay between completion attempts.
func (d Delays) Backoff() time.Duration { return ms(d.APIRetryBackoff) }

// Settings is the complete engine configuration. JSON names match the keys
// the extension reads and writes.
type Settings struct {
	AutoGroupNewTabs           bool   `json:"autoGroupNewTabs" yaml:"autoGroupNewTabs"`
	AutoRegroupTabs            bool   `json:"autoRegroupTabs" yaml:"autoRegroupTabs"`
	ExcludePinnedTabs          bool   `json:"excludePinnedTabs" yaml:"excludePinnedTabs"`
	CloseOtherGroups           bool   `json:"closeOtherGroups" yaml:"closeOtherGroups"`
	FetchMissingTitles         bool   `json:"fetchMissingTitles" yaml:"fetchMissingTitles"`
	MaxTabsPerGroup            int    `json:"maxTabsPerGroup" yaml:"maxTabsPerGroup"`
	UndoHistorySize            int    `json:"undoHistorySize" yaml:"undoHistorySize"`
	LargeBatchThreshold        int    `json:"largeBatchThreshold" yaml:"largeBatchThreshold"`
	BatchMode                  string `json:"batchMode" yaml:"batchMode"`
	CustomGroupingInstructions string `json:"customGroupingInstructions" yaml:"customGroupingInstructions"`
	Delays                     Delays `json:"delays" yaml:"delays"`

	AIProvider       string `json:"aiProvider" yaml:"aiProvider"`
	ModelName        string `json:"modelName" yaml:"modelName"`
	APIKey           string `json:"apiKey" yaml:"apiKey"`
	CustomAPIBaseURL string `json:"customApiBaseUrl" yaml:"customApiBaseUrl"`
}

// Defaults returns the settings used for keys that were never stored.
func Defaults() Settings {
	return Settings{
		AutoGroupNewTabs:    true,
		AutoRegroupTabs:     true,
		CloseOtherGroups:    true,
		MaxTabsPerGroup:     10,
		UndoHistorySize:     10,
		LargeBatchThreshold: 30,
		BatchMode:           "auto",
		Delays: Delays{
			AutoGroupFallback: 15000,
			RegroupDelay:      3000,
			RetryDelay:        100,
			APIRetryBackoff:   1000,
		},
		AIProvider: "gemini",
	}
}

// Source yields the current settings. The engine reads it on every event
// so changes apply without a restart.
type Source interface {
	Settings(ctx context.Context) (Settings, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Settings, error)

func (f SourceFunc) Settings(ctx context.Context) (Settings, error) { return f(ctx) }

// Static returns a Source that always yields s.
func Static(s Settings) Source {
	return SourceFunc(func(context.Context) (Settings, error) { return s, nil })
}

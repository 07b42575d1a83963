// Package settings holds user-editable translation settings and their
// SQLite-backed store.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/internal/model"
)

// Settings is the snapshot the router reads for each request.
type Settings struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	SourceLanguage   string `json:"sourceLanguage" yaml:"sourceLanguage"`
	TargetLanguage   string `json:"targetLanguage" yaml:"targetLanguage"`
	SelectedModel    string `json:"selectedModel" yaml:"selectedModel"`
	CloudAPIURL      string `json:"cloudApiUrl" yaml:"cloudApiUrl"`
	CloudAPIKey      string `json:"cloudApiKey" yaml:"cloudApiKey"`
	UseCloudFallback bool   `json:"useCloudFallback" yaml:"useCloudFallback"`
}

// Default returns the settings used for keys that were never stored.
func Default() Settings {
	return Settings{
		Enabled:          true,
		SourceLanguage:   "auto",
		TargetLanguage:   "English",
		SelectedModel:    model.ForTier(model.TierLarge),
		CloudAPIURL:      "https://api.openai.com/v1",
		CloudAPIKey:      "",
		UseCloudFallback: false,
	}
}

// Redacted returns a copy with the API key masked for display.
func (s Settings) Redacted() Settings {
	if s.CloudAPIKey != "" {
		s.CloudAPIKey = "********"
	}
	return s
}

// Source yields the current settings.
type Source interface {
	Load(ctx context.Context) (Settings, error)
}

// Static is a Source that always returns the same settings.
type Static Settings

// Load implements Source.
func (s Static) Load(context.Context) (Settings, error) {
	return Settings(s), nil
}

var boolKeys = map[string]bool{
	"enabled":          true,
	"useCloudFallback": true,
}

// Keys returns every settings key, sorted.
func Keys() []string {
	raw, _ := json.Marshal(Default())
	var m map[string]json.RawMessage
	_ = json.Unmarshal(raw, &m)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidKey reports whether key names a setting.
func ValidKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// encodeValue turns a user-typed value into the JSON stored for key.
func encodeValue(key, value string) (string, error) {
	if !ValidKey(key) {
		return "", errors.NewBuilder(errors.CodeInvalidInput, fmt.Sprintf("unknown setting %q", key)).
			User().
			WithSuggestion("Valid settings: " + strings.Join(Keys(), ", ")).
			Build()
	}
	if boolKeys[key] {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return "", errors.NewBuilder(errors.CodeInvalidInput, fmt.Sprintf("setting %q needs true or false", key)).
				User().
				Wrap(err).
				Build()
		}
		return strconv.FormatBool(b), nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// overlay decodes stored values on top of the defaults.
func overlay(stored map[string]string) (Settings, error) {
	raw, err := json.Marshal(Default())
	if err != nil {
		return Settings{}, err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return Settings{}, err
	}
	for k, v := range stored {
		if _, known := merged[k]; known {
			merged[k] = json.RawMessage(v)
		}
	}
	raw, err = json.Marshal(merged)
	if err != nil {
		return Settings{}, errors.Wrap(err, errors.CodeSettingsStoreFailed, "stored settings are not valid JSON", errors.CategorySystem)
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, errors.Wrap(err, errors.CodeSettingsStoreFailed, "stored settings have the wrong type", errors.CategorySystem)
	}
	return s, nil
}

// flatten turns a snapshot into stored key/value pairs.
func flatten(s Settings) (map[string]string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = string(v)
	}
	return out, nil
}

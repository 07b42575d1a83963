// Package protocol provides the value types and messages exchanged between
// a request origin (content script, CLI, MCP client) and the process hosting
// the inference router. These types can be imported by external tools.
package protocol

// TranslationResult is what the model returns for one subtitle lookup.
// Field names on the wire match the JSON keys the model is asked to emit.
type TranslationResult struct {
	Translation   string `json:"translation"`
	Meaning       string `json:"meaning"`
	KeyPhrase     string `json:"key_phrase"`
	Pronunciation string `json:"pronunciation"`
	UsageNote     string `json:"usage_note"`
}

// Source names the tier that produced a result.
type Source string

const (
	SourceCache Source = "cache"
	SourceLocal Source = "local"
	SourceCloud Source = "cloud"
)

// Valid reports whether s is one of the known tiers.
func (s Source) Valid() bool {
	switch s {
	case SourceCache, SourceLocal, SourceCloud:
		return true
	}
	return false
}

// HardwareProfile describes local compute capability.
type HardwareProfile struct {
	HasAcceleratedCompute bool   `json:"hasAcceleratedCompute"`
	HasPortableRuntime    bool   `json:"hasPortableRuntime"`
	Vendor                string `json:"vendor"`
	EstimatedMemoryMB     int    `json:"estimatedMemoryMB"`
	RecommendedModel      string `json:"recommendedModel"`
	CanRunLocal           bool   `json:"canRunLocal"`
}

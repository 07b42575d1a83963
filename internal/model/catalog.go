package model

// Tier is a model size class.
type Tier int

const (
	TierSmall Tier = iota
	TierMid
	TierLarge
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierSmall:
		return "small"
	case TierMid:
		return "mid"
	case TierLarge:
		return "large"
	default:
		return "unknown"
	}
}

// Memory thresholds (MB) for picking a tier.
const (
	LargeTierMinMB = 3072
	MidTierMinMB   = 1536
)

// CatalogEntry describes one supported model.
type CatalogEntry struct {
	ID       string
	Label    string
	Size     string
	MinMemMB int
	Tier     Tier
}

// Catalog lists supported models, largest first.
var Catalog = []CatalogEntry{
	{ID: "phi3:mini", Label: "Phi-3 Mini", Size: "~2.2 GB", MinMemMB: LargeTierMinMB, Tier: TierLarge},
	{ID: "qwen2:1.5b", Label: "Qwen2 1.5B", Size: "~1.0 GB", MinMemMB: MidTierMinMB, Tier: TierMid},
	{ID: "tinyllama:1.1b", Label: "TinyLlama 1.1B", Size: "~0.7 GB", MinMemMB: 0, Tier: TierSmall},
}

// TierForMemory picks the tier that fits an estimated memory budget.
func TierForMemory(memMB int) Tier {
	switch {
	case memMB >= LargeTierMinMB:
		return TierLarge
	case memMB >= MidTierMinMB:
		return TierMid
	default:
		return TierSmall
	}
}

// ForTier returns the catalog model ID for t.
func ForTier(t Tier) string {
	for _, e := range Catalog {
		if e.Tier == t {
			return e.ID
		}
	}
	return Catalog[len(Catalog)-1].ID
}

// Lookup finds a catalog entry by ID.
func Lookup(id string) (CatalogEntry, bool) {
	for _, e := range Catalog {
		if e.ID == id {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

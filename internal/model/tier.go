package model

import "strings"

type Tier string

const (
	TierLite   Tier = "lite"
	TierGlow   Tier = "glow"
	TierAurora Tier = "aurora"
)

const gib = int64(1) << 30

// TierPolicy describes the storage quota and media processing caps of a tier.
// Zero resolution or video caps mean unlimited.
type TierPolicy struct {
	Tier             Tier   `json:"tier"`
	Name             string `json:"name"`
	StorageLimit     int64  `json:"storageLimit"`
	MaxPhotoEdge     int    `json:"maxPhotoResolution"`
	CompressionLevel int    `json:"compressionLevel"`
	MaxVideoHeight   int    `json:"maxVideoResolution"`
	MaxVideoFPS      int    `json:"maxVideoFps"`
}

var tierPolicies = map[Tier]TierPolicy{
	TierLite: {
		Tier:             TierLite,
		Name:             "Lite",
		StorageLimit:     2 * gib,
		MaxPhotoEdge:     1080,
		CompressionLevel: 85,
		MaxVideoHeight:   720,
		MaxVideoFPS:      30,
	},
	TierGlow: {
		Tier:             TierGlow,
		Name:             "Glow",
		StorageLimit:     20 * gib,
		MaxPhotoEdge:     2160,
		CompressionLevel: 85,
		MaxVideoHeight:   1080,
		MaxVideoFPS:      60,
	},
	TierAurora: {
		Tier:             TierAurora,
		Name:             "Aurora",
		StorageLimit:     100 * gib,
		CompressionLevel: 100,
	},
}

// ParseTier returns the tier named by s and whether it is known.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	_, ok := tierPolicies[t]
	return t, ok
}

// Policy returns the tier's policy. Unknown tiers get the lite policy.
func (t Tier) Policy() TierPolicy {
	p, ok := tierPolicies[t]
	if !ok {
		return tierPolicies[TierLite]
	}
	return p
}

// PreservesOriginal reports whether photos are stored byte for byte.
func (p TierPolicy) PreservesOriginal() bool {
	return p.MaxPhotoEdge == 0 && p.CompressionLevel >= 100
}

func Tiers() []TierPolicy {
	return []TierPolicy{tierPolicies[TierLite], tierPolicies[TierGlow], tierPolicies[TierAurora]}
}

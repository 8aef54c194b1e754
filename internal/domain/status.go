package domain

import "strings"

// Urgency classifies how soon an item needs to be reordered
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
)

// PreferenceProfile selects the weighting used to rank vendors
type PreferenceProfile string

const (
	PreferencePrice    PreferenceProfile = "price"
	PreferenceSpeed    PreferenceProfile = "speed"
	PreferenceBalanced PreferenceProfile = "balanced"
)

// Weights are the price/speed/reliability blend of a preference profile
type Weights struct {
	Price       float64 `json:"price"`
	Speed       float64 `json:"speed"`
	Reliability float64 `json:"reliability"`
}

var profileWeights = map[PreferenceProfile]Weights{
	PreferencePrice:    {Price: 0.6, Speed: 0.2, Reliability: 0.2},
	PreferenceSpeed:    {Price: 0.2, Speed: 0.6, Reliability: 0.2},
	PreferenceBalanced: {Price: 0.33, Speed: 0.33, Reliability: 0.34},
}

// Weights returns the weight triple of the profile. Unknown profiles use balanced.
func (p PreferenceProfile) Weights() Weights {
	if w, ok := profileWeights[p]; ok {
		return w
	}

	return profileWeights[PreferenceBalanced]
}

// ParsePreference returns the profile for a label (case-insensitive).
func ParsePreference(label string) (PreferenceProfile, bool) {
	p := PreferenceProfile(strings.ToLower(strings.TrimSpace(label)))
	if p == "" {
		return PreferenceBalanced, true
	}
	_, ok := profileWeights[p]

	return p, ok
}

package matcher

import "github.com/agentstation/studiosync/pkg/constants"

// Descriptor is a generic word ("network", "media") whose presence in only
// one of two names makes them less likely to be the same studio.
type Descriptor struct {
	Word   string  `json:"word" yaml:"word"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Policy holds every weight and threshold of the scorer.
type Policy struct {
	// Threshold is the minimum score for a fuzzy match to be accepted.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	CharWeight  float64 `json:"char_weight" yaml:"char_weight"`
	OrderWeight float64 `json:"order_weight" yaml:"order_weight"`
	AffixWeight float64 `json:"affix_weight" yaml:"affix_weight"`
	WordWeight  float64 `json:"word_weight" yaml:"word_weight"`

	SamePositionBonus float64 `json:"same_position_bonus" yaml:"same_position_bonus"`
	ElsewhereBonus    float64 `json:"elsewhere_bonus" yaml:"elsewhere_bonus"`
	ExtraWordPenalty  float64 `json:"extra_word_penalty" yaml:"extra_word_penalty"`
	AffixStep         float64 `json:"affix_step" yaml:"affix_step"`

	// Words longer than SignificantLength count as significant.
	SignificantLength  int     `json:"significant_length" yaml:"significant_length"`
	SignificantHit     float64 `json:"significant_hit" yaml:"significant_hit"`
	SignificantMiss    float64 `json:"significant_miss" yaml:"significant_miss"`
	AdjustAbove        float64 `json:"adjust_above" yaml:"adjust_above"`
	SubsetPenalty      float64 `json:"subset_penalty" yaml:"subset_penalty"`
	MissingWordPenalty float64 `json:"missing_word_penalty" yaml:"missing_word_penalty"`

	// Descriptors are applied in order.
	Descriptors []Descriptor `json:"descriptors" yaml:"descriptors"`
}

// DefaultPolicy returns the stock weights.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:          constants.DefaultFuzzyThreshold,
		CharWeight:         0.3,
		OrderWeight:        0.3,
		AffixWeight:        0.2,
		WordWeight:         0.2,
		SamePositionBonus:  40,
		ElsewhereBonus:     20,
		ExtraWordPenalty:   25,
		AffixStep:          2,
		SignificantLength:  constants.SignificantWordLength,
		SignificantHit:     30,
		SignificantMiss:    20,
		AdjustAbove:        90,
		SubsetPenalty:      15,
		MissingWordPenalty: 10,
		Descriptors: []Descriptor{
			{Word: "network", Weight: -30},
			{Word: "group", Weight: -25},
			{Word: "media", Weight: -25},
			{Word: "entertainment", Weight: -25},
			{Word: "productions", Weight: -20},
			{Word: "studio", Weight: -20},
			{Word: "films", Weight: -20},
			{Word: "pictures", Weight: -20},
			{Word: "company", Weight: -15},
			{Word: "inc", Weight: -15},
			{Word: "llc", Weight: -15},
			{Word: "ltd", Weight: -15},
		},
	}
}

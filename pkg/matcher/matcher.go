// Package matcher decides whether a remote studio name refers to the same
// studio as a local one.
//
// An exact case-insensitive match always scores 100. Anything else is scored
// as a weighted blend of character similarity, word order, shared affixes and
// significant words, then penalized for subset names and generic descriptor
// words once it scores high enough to be dangerous.
package matcher

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/logging"
	"github.com/agentstation/studiosync/pkg/registry"
)

// Result is one scored candidate.
type Result struct {
	Candidate registry.Candidate `json:"candidate" yaml:"candidate"`
	// Score is clamped to [0, 100].
	Score float64 `json:"score" yaml:"score"`
	// Raw is the unclamped score used for ranking.
	Raw      float64 `json:"-" yaml:"-"`
	Exact    bool    `json:"exact" yaml:"exact"`
	Accepted bool    `json:"accepted" yaml:"accepted"`
}

// Adjustment is one penalty applied to a high fuzzy score.
type Adjustment struct {
	Reason string  `json:"reason" yaml:"reason"`
	Delta  float64 `json:"delta" yaml:"delta"`
}

// Breakdown explains how a score was reached.
type Breakdown struct {
	Input       string       `json:"input" yaml:"input"`
	Candidate   string       `json:"candidate" yaml:"candidate"`
	Exact       bool         `json:"exact" yaml:"exact"`
	Ratio       float64      `json:"ratio" yaml:"ratio"`
	Partial     float64      `json:"partial_ratio" yaml:"partial_ratio"`
	TokenSort   float64      `json:"token_sort_ratio" yaml:"token_sort_ratio"`
	TokenSet    float64      `json:"token_set_ratio" yaml:"token_set_ratio"`
	WordOrder   float64      `json:"word_order" yaml:"word_order"`
	Affix       float64      `json:"affix" yaml:"affix"`
	WordLength  float64      `json:"word_length" yaml:"word_length"`
	Weighted    float64      `json:"weighted" yaml:"weighted"`
	Adjustments []Adjustment `json:"adjustments,omitempty" yaml:"adjustments,omitempty"`
	Raw         float64      `json:"raw" yaml:"raw"`
	Score       float64      `json:"score" yaml:"score"`
}

// Matcher scores names under a Policy.
type Matcher struct {
	policy Policy
	fuzzy  bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithPolicy replaces the scoring policy.
func WithPolicy(p Policy) Option {
	return func(m *Matcher) {
		m.policy = p
	}
}

// WithThreshold sets the acceptance threshold.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.policy.Threshold = threshold
	}
}

// WithFuzzy enables or disables fuzzy matching. Disabled leaves exact only.
func WithFuzzy(enabled bool) Option {
	return func(m *Matcher) {
		m.fuzzy = enabled
	}
}

// New creates a Matcher with the default policy and fuzzy matching on.
func New(opts ...Option) *Matcher {
	m := &Matcher{policy: DefaultPolicy(), fuzzy: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.policy.Threshold
}

// Fuzzy reports whether fuzzy matching is enabled.
func (m *Matcher) Fuzzy() bool {
	return m.fuzzy
}

// Policy returns a copy of the policy in use.
func (m *Matcher) Policy() Policy {
	p := m.policy
	p.Descriptors = slices.Clone(m.policy.Descriptors)
	return p
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// IsExact reports case-insensitive equality.
func IsExact(a, b string) bool {
	return lower(strings.TrimSpace(a)) == lower(strings.TrimSpace(b))
}

// Score returns the clamped score of candidate against input.
func (m *Matcher) Score(input, candidate string) float64 {
	return m.Explain(input, candidate).Score
}

// Explain scores candidate against input and reports every component.
func (m *Matcher) Explain(input, candidate string) Breakdown {
	b := Breakdown{Input: input, Candidate: candidate}
	if IsExact(input, candidate) {
		b.Exact = true
		b.Raw = constants.MaxScore
		b.Score = constants.MaxScore
		return b
	}

	p := m.policy
	a, c := lower(input), lower(candidate)

	b.Ratio = Ratio(a, c)
	b.Partial = PartialRatio(a, c)
	b.TokenSort = TokenSortRatio(a, c)
	b.TokenSet = TokenSetRatio(a, c)
	b.WordOrder = p.wordOrder(a, c)
	b.Affix = p.affix(a, c)
	b.WordLength = p.wordLength(a, c)

	char := max(b.Ratio, b.Partial, b.TokenSort, b.TokenSet)
	b.Weighted = char*p.CharWeight + b.WordOrder*p.OrderWeight + b.Affix*p.AffixWeight + b.WordLength*p.WordWeight
	score := b.Weighted

	if score >= p.AdjustAbove {
		score, b.Adjustments = p.adjust(score, a, c)
	}

	b.Raw = score
	b.Score = clamp(score)
	return b
}

func (p Policy) wordOrder(a, c string) float64 {
	w1, w2 := strings.Fields(a), strings.Fields(c)
	score := 0.0
	for i := 0; i < len(w1) && i < len(w2); i++ {
		switch {
		case w1[i] == w2[i]:
			score += p.SamePositionBonus
		case slices.Contains(w2, w1[i]) || slices.Contains(w1, w2[i]):
			score += p.ElsewhereBonus
		}
	}
	if len(w1) > len(w2) {
		score -= float64(len(w1)-len(w2)) * p.ExtraWordPenalty
	}
	return score
}

func (p Policy) affix(a, c string) float64 {
	r1, r2 := []rune(a), []rune(c)
	n := min(len(r1), len(r2))
	score := 0.0
	for i := 1; i < n; i++ {
		if string(r1[:i]) == string(r2[:i]) {
			score += float64(i) * p.AffixStep
		}
		if string(r1[len(r1)-i:]) == string(r2[len(r2)-i:]) {
			score += float64(i) * p.AffixStep
		}
	}
	return score
}

func (p Policy) significant(w string) bool {
	return utf8.RuneCountInString(w) > p.SignificantLength
}

func (p Policy) wordLength(a, c string) float64 {
	w2 := strings.Fields(c)
	score := 0.0
	for _, w := range strings.Fields(a) {
		if !p.significant(w) {
			continue
		}
		if slices.Contains(w2, w) {
			score += p.SignificantHit
		} else {
			score -= p.SignificantMiss
		}
	}
	return score
}

func (p Policy) adjust(score float64, a, c string) (float64, []Adjustment) {
	var adj []Adjustment
	apply := func(delta float64, reason string) {
		score = max(score+delta, 0)
		adj = append(adj, Adjustment{Reason: reason, Delta: delta})
	}

	in, cand := tokenSet(a), tokenSet(c)
	if len(in) != len(cand) && (subset(in, cand) || subset(cand, in)) {
		diff := len(in) - len(cand)
		if diff < 0 {
			diff = -diff
		}
		apply(-float64(diff)*p.SubsetPenalty, "subset match")
	}

	for _, d := range p.Descriptors {
		switch {
		case cand[d.Word] && !in[d.Word]:
			apply(d.Weight, fmt.Sprintf("candidate adds %q", d.Word))
		case in[d.Word] && !cand[d.Word]:
			apply(d.Weight, fmt.Sprintf("candidate lacks %q", d.Word))
		}
	}

	if len(in) > len(cand) {
		missing := make([]string, 0, len(in))
		for w := range in {
			if !cand[w] && p.significant(w) {
				missing = append(missing, w)
			}
		}
		slices.Sort(missing)
		for _, w := range missing {
			apply(-p.MissingWordPenalty, fmt.Sprintf("candidate lacks %q", w))
		}
	}
	return score, adj
}

func subset(a, b map[string]bool) bool {
	for w := range a {
		if !b[w] {
			return false
		}
	}
	return true
}

func clamp(f float64) float64 {
	return min(max(f, 0), constants.MaxScore)
}

// MatchAll scores every candidate in order. When any candidate matches
// exactly, only the exact matches are returned.
func (m *Matcher) MatchAll(input string, candidates []registry.Candidate) []Result {
	var exact []Result
	for _, c := range candidates {
		if IsExact(input, c.Name) {
			exact = append(exact, Result{Candidate: c, Score: constants.MaxScore, Raw: constants.MaxScore, Exact: true, Accepted: true})
		}
	}
	if len(exact) > 0 || !m.fuzzy {
		return exact
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		b := m.Explain(input, c.Name)
		results = append(results, Result{
			Candidate: c,
			Score:     b.Score,
			Raw:       b.Raw,
			Accepted:  b.Raw >= m.policy.Threshold,
		})
	}
	return results
}

// Best returns the highest-ranked accepted candidate. Ties keep the first
// candidate encountered.
func (m *Matcher) Best(ctx context.Context, input string, candidates []registry.Candidate) (Result, bool) {
	results := m.MatchAll(input, candidates)
	log := logging.Ctx(ctx)

	var best Result
	found, exact := false, 0
	for _, r := range results {
		if r.Exact {
			exact++
		}
		log.Trace().Str("candidate", r.Candidate.Name).Float64("score", r.Score).Bool("accepted", r.Accepted).Msg("Scored candidate")
		if !r.Accepted {
			continue
		}
		if !found || r.Raw > best.Raw {
			best, found = r, true
		}
	}
	if exact > 1 {
		log.Warn().Str("name", input).Int("exact_matches", exact).Str("chosen", best.Candidate.RemoteID).
			Msg("Several exact matches in one registry, using the first")
	}
	return best, found
}

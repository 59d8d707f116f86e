package context

import (
	"regexp"
	"sort"
	"strings"
)

// Relevance weights. Explicit focus hints outweigh organic token overlap and
// display names outweigh raw identifier fragments.
const (
	WeightFocusEntity = 5
	WeightIdentifier  = 2
	WeightDisplayName = 3
	WeightAreaName    = 3
	WeightDeviceName  = 2
	WeightFocusArea   = 4
	WeightDomain      = 1
)

var nonTokenChars = regexp.MustCompile(`[^a-z0-9\s_-]`)

// Tokenize lowercases s, strips characters outside [a-z0-9\s_-] and splits on
// whitespace.
func Tokenize(s string) []string {
	cleaned := nonTokenChars.ReplaceAllString(strings.ToLower(s), "")
	return strings.Fields(cleaned)
}

// identifierTokens splits an entity id on its dot and also yields the
// underscore and dash pieces of every part.
func identifierTokens(entityID string) []string {
	tokens := Tokenize(strings.ReplaceAll(entityID, ".", " "))
	out := append([]string(nil), tokens...)
	for _, tok := range tokens {
		pieces := strings.FieldsFunc(tok, func(r rune) bool { return r == '_' || r == '-' })
		if len(pieces) > 1 {
			out = append(out, pieces...)
		}
	}
	return out
}

// ScoredCandidate pairs an entity with its relevance score.
type ScoredCandidate struct {
	Score int
	State *EntityState
}

// Scorer scores entities against one query.
type Scorer struct {
	query         map[string]struct{}
	focusAreas    map[string]struct{}
	focusEntities map[string]struct{}
}

// NewScorer prepares a scorer for the query and focus hints.
func NewScorer(query string, focusAreas, focusEntities []string) *Scorer {
	areaTokens := make([]string, 0, len(focusAreas))
	for _, area := range focusAreas {
		areaTokens = append(areaTokens, Tokenize(area)...)
	}
	return &Scorer{
		query:         toSet(Tokenize(query)),
		focusAreas:    toSet(areaTokens),
		focusEntities: toSet(cleanList(focusEntities)),
	}
}

// Score returns the non-negative relevance of an entity.
func (s *Scorer) Score(meta *EntityMetadata) int {
	if meta == nil {
		return 0
	}

	score := 0
	if _, ok := s.focusEntities[strings.ToLower(meta.EntityID)]; ok {
		score += WeightFocusEntity
	}
	score += WeightIdentifier * overlap(identifierTokens(meta.EntityID), s.query)
	score += WeightDisplayName * overlap(Tokenize(meta.DisplayName), s.query)
	score += WeightAreaName * overlap(Tokenize(meta.AreaName), s.query)
	score += WeightDeviceName * overlap(Tokenize(meta.DeviceName), s.query)
	score += WeightFocusArea * overlap(Tokenize(meta.AreaName), s.focusAreas)
	score += WeightDomain * overlap(Tokenize(DomainOf(meta.EntityID)), s.query)
	return score
}

// Rank scores the states, drops zero scores and sorts by score descending.
// Equal scores keep their enumeration order.
func (s *Scorer) Rank(states []*EntityState, metadata map[string]*EntityMetadata) []ScoredCandidate {
	ranked := make([]ScoredCandidate, 0, len(states))
	for _, state := range states {
		score := s.Score(metadata[state.EntityID])
		if score > 0 {
			ranked = append(ranked, ScoredCandidate{Score: score, State: state})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// overlap counts the distinct tokens that are present in set.
func overlap(tokens []string, set map[string]struct{}) int {
	if len(set) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(tokens))
	count := 0
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			count++
		}
	}
	return count
}

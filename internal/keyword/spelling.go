package keyword

import (
	"sort"
	"strings"
)

// Suggestion is a dictionary term close to a query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// SpellChecker proposes corrections for query terms that are not in the
// indexed vocabulary.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int
	maxSuggestions int
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores terms found in fewer than f chunks.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions to return per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker over dict.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns dictionary terms within maxDistance of term, best first.
// Score is frequency / (distance + 1).
func (s *SpellChecker) Suggest(term string) ([]Suggestion, error) {
	term = strings.ToLower(term)
	terms, err := s.dictionary.GetAllTerms()
	if err != nil {
		return nil, err
	}
	suggestions := make([]Suggestion, 0)
	termLen := len([]rune(term))
	for _, candidate := range terms {
		if candidate == term {
			continue
		}
		lenDiff := len([]rune(candidate)) - termLen
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		if lenDiff > s.maxDistance {
			continue
		}
		distance := LevenshteinDistance(term, candidate)
		if distance > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(candidate)
		if err != nil || freq < s.minFreq {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Term:      candidate,
			Distance:  distance,
			Frequency: freq,
			Score:     float64(freq) / float64(distance+1),
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Term < suggestions[j].Term
	})
	if len(suggestions) > s.maxSuggestions {
		suggestions = suggestions[:s.maxSuggestions]
	}
	return suggestions, nil
}

// Correct replaces every unknown query term with its best suggestion. The
// boolean is false when nothing was changed.
func (s *SpellChecker) Correct(query string) (string, bool, error) {
	terms := tokenizeQuery(query)
	known, err := s.dictionary.GetAllTerms()
	if err != nil {
		return query, false, err
	}
	vocab := make(map[string]struct{}, len(known))
	for _, t := range known {
		vocab[t] = struct{}{}
	}

	changed := false
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := vocab[term]; ok {
			out = append(out, term)
			continue
		}
		suggestions, err := s.Suggest(term)
		if err != nil {
			return query, false, err
		}
		if len(suggestions) == 0 {
			out = append(out, term)
			continue
		}
		out = append(out, suggestions[0].Term)
		changed = true
	}
	if !changed {
		return query, false, nil
	}
	return strings.Join(out, " "), true, nil
}

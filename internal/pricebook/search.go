package pricebook

import (
	"sort"

	"smartrab/internal"
	"smartrab/internal/util"
)

type Status string

const (
	StatusOK       Status = "OK"
	StatusReview   Status = "REVIEW"
	StatusNotFound Status = "NOT_FOUND"
)

type Reason string

const (
	ReasonCode        Reason = "code"
	ReasonDescription Reason = "description"
	ReasonFuzzy       Reason = "fuzzy"
	ReasonNone        Reason = "none"
)

const (
	DefaultOKThreshold     = 0.90
	DefaultReviewThreshold = 0.60
	minGap                 = 0.05
	maxCandidates          = 5
	maxScan                = 1500
)

type Candidate struct {
	Entry internal.PriceEntry
	Score float64
}

type SearchResult struct {
	Query      string
	Status     Status
	Confidence float64
	Reason     Reason
	Best       *internal.PriceEntry
	Candidates []Candidate
}

// Index addresses entries by position so identical descriptions in
// different categories stay distinct.
type Index struct {
	entries  []internal.PriceEntry
	byCode   map[string][]int
	byKey    map[string][]int
	byToken  map[string]map[int]struct{}
	keyByPos []string
}

func BuildIndex(entries []internal.PriceEntry) *Index {
	idx := &Index{
		entries:  entries,
		byCode:   map[string][]int{},
		byKey:    map[string][]int{},
		byToken:  map[string]map[int]struct{}{},
		keyByPos: make([]string, len(entries)),
	}
	for i, e := range entries {
		key := e.Key
		if key == "" {
			key = EntryKey(e.Description)
		}
		idx.keyByPos[i] = key
		idx.byKey[key] = append(idx.byKey[key], i)
		if code := util.NormalizeCode(e.Code); code != "" {
			idx.byCode[code] = append(idx.byCode[code], i)
		}
		for _, token := range util.Tokenize(e.Description) {
			if _, ok := idx.byToken[token]; !ok {
				idx.byToken[token] = map[int]struct{}{}
			}
			idx.byToken[token][i] = struct{}{}
		}
	}
	return idx
}

type Searcher struct {
	index           *Index
	okThreshold     float64
	reviewThreshold float64
}

// NewSearcher builds a searcher over a price list snapshot. Zero thresholds
// fall back to the defaults.
func NewSearcher(entries []internal.PriceEntry, okThreshold, reviewThreshold float64) *Searcher {
	if okThreshold <= 0 {
		okThreshold = DefaultOKThreshold
	}
	if reviewThreshold <= 0 {
		reviewThreshold = DefaultReviewThreshold
	}
	return &Searcher{index: BuildIndex(entries), okThreshold: okThreshold, reviewThreshold: reviewThreshold}
}

// Search resolves a query by item code first, then by exact description,
// then by fuzzy ranking.
func (s *Searcher) Search(query string) SearchResult {
	result := SearchResult{Query: query, Status: StatusNotFound, Reason: ReasonNone, Candidates: []Candidate{}}
	key := EntryKey(query)

	if util.LooksLikeCode(query) {
		if byCode := s.index.byCode[util.NormalizeCode(query)]; len(byCode) > 0 {
			return s.direct(result, byCode, ReasonCode, 0.99, 0.80)
		}
	}
	if key == "" {
		return result
	}
	if exact := s.index.byKey[key]; len(exact) > 0 {
		return s.direct(result, exact, ReasonDescription, 0.95, 0.78)
	}

	candidates := s.rank(key)
	if len(candidates) == 0 {
		return result
	}
	result.Candidates = candidates
	top := candidates[0]
	gap := top.Score
	if len(candidates) > 1 {
		gap = top.Score - candidates[1].Score
	}
	result.Confidence = top.Score

	switch {
	case top.Score >= s.okThreshold && gap >= minGap:
		result.Status, result.Reason = StatusOK, ReasonFuzzy
	case top.Score >= s.reviewThreshold:
		result.Status, result.Reason = StatusReview, ReasonFuzzy
	default:
		return result
	}
	best := top.Entry
	result.Best = &best
	return result
}

// direct handles code and exact hits: one hit is OK, several need review.
func (s *Searcher) direct(result SearchResult, positions []int, reason Reason, single, multiple float64) SearchResult {
	result.Reason = reason
	if len(positions) == 1 {
		best := s.index.entries[positions[0]]
		result.Status = StatusOK
		result.Confidence = single
		result.Best = &best
		result.Candidates = []Candidate{{Entry: best, Score: single}}
		return result
	}
	result.Status = StatusReview
	result.Confidence = multiple
	for _, pos := range positions {
		if len(result.Candidates) == maxCandidates {
			break
		}
		result.Candidates = append(result.Candidates, Candidate{Entry: s.index.entries[pos], Score: multiple})
	}
	return result
}

func (s *Searcher) rank(key string) []Candidate {
	queryTokens := util.Tokenize(key)
	positions := map[int]struct{}{}
	for _, token := range queryTokens {
		for pos := range s.index.byToken[token] {
			positions[pos] = struct{}{}
		}
	}
	if len(positions) == 0 {
		for pos := range s.index.entries {
			if pos >= maxScan {
				break
			}
			positions[pos] = struct{}{}
		}
	}

	out := make([]Candidate, 0, len(positions))
	for pos := range positions {
		candidate := s.index.keyByPos[pos]
		score := Score(key, candidate, queryTokens, util.Tokenize(candidate))
		if score <= 0 {
			continue
		}
		out = append(out, Candidate{Entry: s.index.entries[pos], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entry.Key < out[j].Entry.Key
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// Score blends character bigram similarity with the share of query tokens
// found in the candidate.
func Score(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}
	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

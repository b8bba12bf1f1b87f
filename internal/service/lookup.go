package service

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/kvist/tradefarm/internal/database/repository"
)

// LookupService powers the jump palette: fuzzy search over agent names
// and symbols, ranked by edit distance.
type LookupService struct {
	Agents *repository.AgentRepo
}

// Match is one ranked search hit.
type Match struct {
	Kind    string // "agent" or "symbol"
	AgentID string
	Label   string
	Score   float64 // 1 exact .. 0 unrelated
}

// Search returns up to limit matches ordered by descending score.
// Substring hits always qualify; otherwise the normalized levenshtein
// similarity must clear 0.5.
func (s *LookupService) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	query = strings.ToUpper(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil, nil
	}
	agents, err := s.Agents.List(ctx, repository.AgentFilters{})
	if err != nil {
		return nil, err
	}

	var out []Match
	seenSymbol := map[string]bool{}
	for _, a := range agents {
		if sc, ok := score(query, a.Name); ok {
			out = append(out, Match{Kind: "agent", AgentID: a.ID, Label: a.Name, Score: sc})
		}
		if seenSymbol[a.Symbol] {
			continue
		}
		if sc, ok := score(query, a.Symbol); ok {
			seenSymbol[a.Symbol] = true
			out = append(out, Match{Kind: "symbol", AgentID: a.ID, Label: a.Symbol, Score: sc})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func score(query, candidate string) (float64, bool) {
	c := strings.ToUpper(candidate)
	if c == query {
		return 1, true
	}
	if strings.Contains(c, query) {
		// substring hits rank by how much of the candidate they cover
		return 0.5 + 0.5*float64(len(query))/float64(len(c)), true
	}
	longest := len(c)
	if len(query) > longest {
		longest = len(query)
	}
	if longest == 0 {
		return 0, false
	}
	sim := 1 - float64(levenshtein.ComputeDistance(query, c))/float64(longest)
	if sim < 0.5 {
		return 0, false
	}
	return sim, true
}

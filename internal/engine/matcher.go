package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
	"github.com/atlas-desktop/prediction-engine/pkg/utils"
)

// stopWords are dropped before comparing market titles, since they carry
// no discriminating signal ("will", "the") but appear in nearly every
// prediction-market question.
var stopWords = map[string]bool{
	"will": true, "the": true, "a": true, "an": true, "be": true, "by": true,
	"in": true, "on": true, "of": true, "to": true, "is": true, "at": true,
	"for": true, "and": true, "or": true,
}

// normalizeTitle lowercases, strips punctuation, and drops stop words,
// returning the remaining tokens as a set.
func normalizeTitle(title string) map[string]bool {
	tokens := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			word := strings.ToLower(b.String())
			if !stopWords[word] {
				tokens[word] = true
			}
			b.Reset()
		}
	}
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// titleSimilarity computes the Jaccard index between two titles' token
// sets: |intersection| / |union|, 0 when either title yields no tokens.
func titleSimilarity(a, b string) decimal.Decimal {
	setA, setB := normalizeTitle(a), normalizeTitle(b)
	if len(setA) == 0 || len(setB) == 0 {
		return decimal.Zero
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(intersection)).Div(decimal.NewFromInt(int64(union)))
}

// Matcher pairs venue-A and venue-B markets whose titles clear a
// similarity threshold and whose resolution dates line up, inferring
// each pair's per-outcome polarity from outcome name comparison.
type Matcher struct {
	clock         clock.Clock
	minSimilarity decimal.Decimal
	endDateWindow time.Duration
}

// NewMatcher constructs a Matcher.
func NewMatcher(clk clock.Clock, minSimilarity decimal.Decimal, endDateWindow time.Duration) *Matcher {
	if minSimilarity.IsZero() {
		minSimilarity = decimal.NewFromFloat(0.6)
	}
	if endDateWindow == 0 {
		endDateWindow = 24 * time.Hour
	}
	return &Matcher{clock: clk, minSimilarity: minSimilarity, endDateWindow: endDateWindow}
}

// Match finds, for each venue-A market, the best-scoring venue-B market
// clearing the similarity and end-date-proximity thresholds, and builds
// the resulting MarketPair with inferred outcome polarity.
func (m *Matcher) Match(marketsA, marketsB []types.NormalizedMarket) []types.MarketPair {
	pairs := make([]types.MarketPair, 0)
	usedB := make(map[string]bool)

	for _, a := range marketsA {
		var best *types.NormalizedMarket
		bestScore := decimal.Zero

		for i := range marketsB {
			b := marketsB[i]
			if usedB[b.ID] {
				continue
			}
			if a.EndDate.Sub(b.EndDate).Abs() > m.endDateWindow {
				continue
			}
			score := titleSimilarity(a.Title, b.Title)
			if score.GreaterThan(bestScore) {
				bestScore = score
				best = &b
			}
		}

		if best == nil || bestScore.LessThan(m.minSimilarity) {
			continue
		}
		usedB[best.ID] = true

		pairs = append(pairs, types.MarketPair{
			ID:         utils.GenerateID("pair"),
			MarketAID:  a.ID,
			MarketBID:  best.ID,
			Similarity: bestScore,
			Mappings:   inferMappings(a, *best),
			MatchedAt:  m.clock.Now(),
		})
	}
	return pairs
}

// inferMappings pairs each venue-A outcome with its venue-B counterpart
// by matching outcome names (YES-to-YES, NO-to-NO); since a binary
// market always resolves YES/NO the same way regardless of venue
// phrasing, this is always PolaritySame. Inverted polarity is reserved
// for the (rarer) case where venue B frames the question as the negation
// of venue A's, which callers can override after inspecting the pair.
func inferMappings(a, b types.NormalizedMarket) []types.OutcomeMapping {
	mappings := make([]types.OutcomeMapping, 0, len(a.Outcomes))
	for _, oa := range a.Outcomes {
		for _, ob := range b.Outcomes {
			if strings.EqualFold(oa.Name, ob.Name) {
				mappings = append(mappings, types.OutcomeMapping{
					OutcomeAID: oa.ID, OutcomeBID: ob.ID, Polarity: types.PolaritySame,
				})
				break
			}
		}
	}
	return mappings
}

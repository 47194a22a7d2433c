package matching

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/nobody-27-27/EcomCompare/internal/crawler"
	"github.com/nobody-27-27/EcomCompare/internal/models"
)

// ScoreOptions weight the individual similarity signals.
type ScoreOptions struct {
	MinSimilarity     float64
	NameWeight        float64
	PriceWeight       float64
	MaxPriceDiffRatio float64
}

func DefaultScoreOptions() ScoreOptions {
	return ScoreOptions{
		MinSimilarity:     0.6,
		NameWeight:        0.7,
		PriceWeight:       0.3,
		MaxPriceDiffRatio: 0.3,
	}
}

// Similarity is a bounded match score with the signal that produced it.
type Similarity struct {
	Value     float64
	MatchType models.MatchType
}

// Score rates how likely two products are the same item. Equal SKUs are
// authoritative and short-circuit at 1.0; otherwise name similarity is
// the primary signal with price proximity as a weak tiebreaker.
func Score(source, competitor models.Product, opts ScoreOptions) Similarity {
	srcSKU := strings.ToLower(strings.TrimSpace(source.SKU))
	cmpSKU := strings.ToLower(strings.TrimSpace(competitor.SKU))

	if srcSKU != "" && cmpSKU != "" && srcSKU == cmpSKU {
		return Similarity{Value: 1.0, MatchType: models.MatchSKUExact}
	}

	score := 0.0
	matchType := models.MatchNone

	if srcSKU != "" && cmpSKU != "" &&
		(strings.Contains(srcSKU, cmpSKU) || strings.Contains(cmpSKU, srcSKU)) {
		score += 0.30
		matchType = models.MatchSKUPartial
	}

	nameSim := nameSimilarity(source.Name, competitor.Name)
	score += nameSim * opts.NameWeight

	if matchType != models.MatchSKUPartial {
		switch {
		case nameSim >= 0.9:
			matchType = models.MatchNameExact
		case nameSim >= opts.MinSimilarity:
			matchType = models.MatchNameFuzzy
		}
	}

	score += priceProximityBonus(source.Price, competitor.Price, opts)

	if score > 1.0 {
		score = 1.0
	}
	return Similarity{Value: score, MatchType: matchType}
}

// nameSimilarity takes the better of normalized edit distance and token
// overlap: edit distance tolerates typos, token overlap tolerates word
// reordering and punctuation.
func nameSimilarity(a, b string) float64 {
	na := crawler.NormalizeName(a)
	nb := crawler.NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}

	edit := editSimilarity(na, nb)
	jac := tokenJaccard(na, nb)
	if jac > edit {
		return jac
	}
	return edit
}

func editSimilarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// tokenJaccard compares token sets, ignoring tokens of two characters or
// fewer so articles and size suffixes do not dominate.
func tokenJaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		if len(tok) > 2 {
			set[tok] = struct{}{}
		}
	}
	return set
}

// priceProximityBonus falls off linearly from the full bonus at equal
// prices to zero at the ratio threshold. Coincidental price agreement on
// unrelated products stays capped by the small weight.
func priceProximityBonus(p1, p2 *float64, opts ScoreOptions) float64 {
	if p1 == nil || p2 == nil || *p1 == 0 || *p2 == 0 {
		return 0
	}
	avg := (*p1 + *p2) / 2
	diff := *p1 - *p2
	if diff < 0 {
		diff = -diff
	}
	ratio := diff / avg
	if ratio > opts.MaxPriceDiffRatio {
		return 0
	}
	return (1 - ratio/opts.MaxPriceDiffRatio) * opts.PriceWeight
}

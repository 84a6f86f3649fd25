package safety

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/book-tutor/backend/pkg/logger"
)

// LabelScore is one toxicity category with its estimated probability.
type LabelScore struct {
	Label string
	Score float64
}

// PassageFilter is the local, offline toxicity classifier applied to
// retrieved passages before ranking. No network calls; a book chunk is
// judged from a weighted term lexicon over its tokens.
type PassageFilter struct {
	threshold float64
	lexicon   map[string]map[string]float64
}

func NewPassageFilter(threshold float64) *PassageFilter {
	return &PassageFilter{
		threshold: threshold,
		lexicon:   defaultLexicon(),
	}
}

// Classify scores text against every toxicity label. Scores grow with the
// summed weight of matched terms and stay inside [0, 1).
func (f *PassageFilter) Classify(text string) []LabelScore {
	tokens := tokenize(text)

	scores := make([]LabelScore, 0, len(f.lexicon))
	for label, terms := range f.lexicon {
		var weight float64
		for _, tok := range tokens {
			if w, ok := terms[tok]; ok {
				weight += w
			}
		}
		scores = append(scores, LabelScore{
			Label: label,
			Score: 1.0 - 1.0/(1.0+weight),
		})
	}

	return scores
}

// IsPassageSafe reports whether no toxic label exceeds the threshold.
func (f *PassageFilter) IsPassageSafe(text string) bool {
	for _, ls := range f.Classify(text) {
		if ls.Score > f.threshold {
			logger.Debug("Passage rejected by toxicity filter",
				zap.String("label", ls.Label),
				zap.Float64("score", ls.Score),
			)
			return false
		}
	}
	return true
}

func tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		// tokenizer failure must not open the gate; fall back to a crude
		// split so the lexicon still applies
		return strings.Fields(strings.ToLower(text))
	}

	tokens := doc.Tokens()
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, strings.ToLower(tok.Text))
	}
	return out
}

// defaultLexicon weights terms per toxicity label. A single weight-1.0 term
// scores 0.5, right at the default threshold; two such terms push past it.
func defaultLexicon() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"violence": {
			"murder":     1.0,
			"murdered":   1.0,
			"kill":       0.8,
			"killed":     0.8,
			"killing":    0.8,
			"stabbed":    1.0,
			"strangled":  1.2,
			"slaughter":  1.2,
			"corpse":     0.8,
			"bloody":     0.5,
			"gun":        0.5,
			"shot":       0.5,
			"torture":    1.2,
			"tortured":   1.2,
			"massacre":   1.5,
			"brutal":     0.6,
			"gore":       1.0,
		},
		"sexual": {
			"sex":      1.0,
			"sexual":   1.0,
			"naked":    0.8,
			"nude":     0.8,
			"erotic":   1.5,
			"seduce":   0.8,
			"seduced":  0.8,
			"lust":     0.8,
		},
		"substance": {
			"cocaine":  1.5,
			"heroin":   1.5,
			"drugs":    0.8,
			"drunk":    0.6,
			"whiskey":  0.4,
			"overdose": 1.2,
			"opium":    1.0,
		},
		"profanity": {
			"damn":    0.4,
			"hell":    0.3,
			"bastard": 0.8,
			"crap":    0.5,
		},
	}
}

// Package mood maps work item content to a music profile. The mapping is a
// deterministic keyword-counting heuristic over an embedded rule set: no
// randomness, no external calls, same input same answer.
package mood

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

type rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Genres   []string `yaml:"genres"`
	Energy   float64  `yaml:"energy"`
	Valence  float64  `yaml:"valence"`
	Query    []string `yaml:"query"`
}

type ruleSet struct {
	Default string `yaml:"default"`
	Rules   []rule `yaml:"rules"`
}

var rules ruleSet

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func init() {
	if err := yaml.Unmarshal(rulesYAML, &rules); err != nil {
		panic(fmt.Sprintf("mood: parsing embedded rules: %v", err))
	}
	if defaultRule() == nil {
		panic(fmt.Sprintf("mood: default rule %q not defined", rules.Default))
	}
}

func defaultRule() *rule {
	for i := range rules.Rules {
		if rules.Rules[i].Name == rules.Default {
			return &rules.Rules[i]
		}
	}
	return nil
}

// Content is the work item text the scorer looks at.
type Content struct {
	Title       string
	Description string
	Type        string
	Tags        []string
}

// Profile is the selected music profile.
type Profile struct {
	Category string
	Genres   []string
	Energy   float64
	Valence  float64

	queryTerms []string
}

// Query builds the track search query for this profile.
func (p Profile) Query() string {
	return strings.Join(p.queryTerms, " ")
}

// ProfileFor scores every rule against the work item content and returns the
// best match. Single-word keywords match whole words only; multi-word
// keywords match as phrases. Equal scores keep the earlier rule; zero hits
// fall back to the default rule.
func ProfileFor(c Content) Profile {
	text := normalize(strings.Join([]string{
		c.Title,
		c.Description,
		c.Type,
		strings.Join(c.Tags, " "),
	}, " "))
	tokens := tokenize(text)

	best := -1
	bestScore := 0
	for i, r := range rules.Rules {
		if score := scoreRule(r, text, tokens); score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return profileOf(*defaultRule())
	}
	return profileOf(rules.Rules[best])
}

func profileOf(r rule) Profile {
	return Profile{
		Category:   r.Name,
		Genres:     r.Genres,
		Energy:     r.Energy,
		Valence:    r.Valence,
		queryTerms: r.Query,
	}
}

func scoreRule(r rule, text string, tokens map[string]int) int {
	score := 0
	for _, keyword := range r.Keywords {
		if strings.Contains(keyword, " ") {
			score += strings.Count(text, keyword)
		} else {
			score += tokens[keyword]
		}
	}
	return score
}

// normalize lowercases the text and strips markup tags, since work item
// descriptions arrive as HTML.
func normalize(text string) string {
	return strings.ToLower(tagPattern.ReplaceAllString(text, " "))
}

func tokenize(text string) map[string]int {
	counts := make(map[string]int)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		counts[w]++
	}
	return counts
}

package search

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultClassifierCacheSize is the LRU cache size for classification
// results. Classification is cheap but queries repeat heavily in agent
// workloads, so caching keeps the hot path allocation-free.
const DefaultClassifierCacheSize = 10000

// Compiled regex patterns for query classification.
// Compiled at package init for performance.
var (
	// Technical identifiers
	camelCasePattern      = regexp.MustCompile(`^[a-z]+([A-Z][a-z0-9]*)+$`)
	pascalCasePattern     = regexp.MustCompile(`^([A-Z][a-z0-9]*){2,}$`)
	snakeCasePattern      = regexp.MustCompile(`^[a-z]+(_[a-z0-9]+)+$`)
	screamingSnakePattern = regexp.MustCompile(`^[A-Z]+(_[A-Z0-9]+)+$`)
	dottedNamePattern     = regexp.MustCompile(`^\w+(\.\w+)+$`)

	// Code syntax markers: call parens, arrows, scope operators.
	codeSyntaxPattern = regexp.MustCompile(`\(\)|\(.*\)|->|=>|::`)
)

// howToIndicators mark interrogative or tutorial-seeking phrasing.
var howToIndicators = []string{
	"how to", "how do", "how can", "how should", "how would",
	"how does", "how will",
	"what is", "what are", "what does",
	"why does", "why is", "why should",
	"when to", "when should", "where to", "where can",
	"best way", "explain", "guide", "tutorial",
}

// codePatternKeywords mark queries about code constructs.
var codePatternKeywords = []string{
	"async", "await", "decorator", "generator", "iterator",
	"lambda", "closure", "goroutine", "channel", "mutex",
	"middleware", "handler", "interface", "callback",
	"pattern", "injection", "validation", "lifecycle",
}

// typeSuffixes mark identifier-like final tokens in short queries
// ("custom Handler", "validation Error").
var typeSuffixes = []string{
	"Exception", "Error", "Model", "Router",
	"Request", "Response", "Handler", "Middleware",
}

// classifierRule is one entry of the priority-ordered rule table.
type classifierRule struct {
	name     string
	category QueryCategory
	matches  func(q classifierInput) bool
}

// classifierInput is the precomputed lexical view of a query that rules
// match against.
type classifierInput struct {
	raw    string
	lower  string
	tokens []string
}

// ruleTable is evaluated top to bottom; the first matching rule wins, so
// exactly one category is selected even when multiple signals fire.
// The final rule is a catch-all, making classification total.
var ruleTable = []classifierRule{
	{
		name:     "how_to_phrasing",
		category: CategoryHowTo,
		matches: func(q classifierInput) bool {
			for _, ind := range howToIndicators {
				if strings.Contains(q.lower, ind) {
					return true
				}
			}
			return strings.Contains(q.raw, "?")
		},
	},
	{
		name:     "identifier_like",
		category: CategorySpecificTerm,
		matches: func(q classifierInput) bool {
			if len(q.tokens) == 0 || len(q.tokens) > 2 {
				return false
			}
			for _, tok := range q.tokens {
				if camelCasePattern.MatchString(tok) ||
					pascalCasePattern.MatchString(tok) ||
					snakeCasePattern.MatchString(tok) ||
					screamingSnakePattern.MatchString(tok) ||
					dottedNamePattern.MatchString(tok) {
					return true
				}
			}
			last := q.tokens[len(q.tokens)-1]
			for _, suffix := range typeSuffixes {
				if strings.HasSuffix(last, suffix) {
					return true
				}
			}
			return false
		},
	},
	{
		name:     "code_syntax",
		category: CategoryCodePattern,
		matches: func(q classifierInput) bool {
			if codeSyntaxPattern.MatchString(q.raw) {
				return true
			}
			for _, kw := range codePatternKeywords {
				for _, tok := range q.tokens {
					if strings.ToLower(tok) == kw {
						return true
					}
				}
			}
			return false
		},
	},
	{
		name:     "short_concept",
		category: CategoryConcept,
		matches: func(q classifierInput) bool {
			return len(q.tokens) >= 2 && len(q.tokens) <= 4
		},
	},
	{
		name:     "fallback",
		category: CategoryDefault,
		matches:  func(classifierInput) bool { return true },
	},
}

// RuleClassifier classifies queries with a fixed priority-ordered rule
// table over lexical features. Pure, total, deterministic: no learned
// model, no external calls, no side effects beyond the result cache.
type RuleClassifier struct {
	cache *lru.Cache[string, QueryCategory]
}

// Verify interface implementation at compile time.
var _ Classifier = (*RuleClassifier)(nil)

// NewRuleClassifier creates a classifier with the default cache size.
func NewRuleClassifier() *RuleClassifier {
	return NewRuleClassifierWithCacheSize(DefaultClassifierCacheSize)
}

// NewRuleClassifierWithCacheSize creates a classifier with a custom
// LRU cache size.
func NewRuleClassifierWithCacheSize(size int) *RuleClassifier {
	if size <= 0 {
		size = DefaultClassifierCacheSize
	}
	cache, _ := lru.New[string, QueryCategory](size)
	return &RuleClassifier{cache: cache}
}

// Classify assigns a category to the query. Every input string,
// including empty or malformed text, maps to exactly one category.
// The cache key preserves case: the identifier rules are case-sensitive,
// so "ParseHttp" and "parsehttp" must classify independently.
func (c *RuleClassifier) Classify(query string) QueryCategory {
	key := strings.TrimSpace(query)
	if key == "" {
		return CategoryDefault
	}

	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	category := classifyUncached(key)
	c.cache.Add(key, category)
	return category
}

// classifyUncached walks the rule table in priority order.
func classifyUncached(query string) QueryCategory {
	input := classifierInput{
		raw:    query,
		lower:  strings.ToLower(query),
		tokens: strings.Fields(query),
	}
	for _, rule := range ruleTable {
		if rule.matches(input) {
			return rule.category
		}
	}
	return CategoryDefault
}

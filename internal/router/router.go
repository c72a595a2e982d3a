// Package router implements the intent router (spec.md §4.G): the
// first-match-wins classification of a free-text turn into one of
// {list-all, funnel trigger, known-unknown series, direct answer}. The
// router performs no retrieval; it only classifies.
package router

import (
	"regexp"
	"sort"
	"strings"

	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// listAllPhrases are the catch-all substrings that trigger a static
// catalog enumeration rather than any dialogue processing.
var listAllPhrases = []string{
	"list all models",
	"show all series",
	"列出所有型號",
	"列出所有系列",
	"所有型號",
	"所有系列",
}

// seriesLikeToken matches a bare digit run that could plausibly be a
// series key, for the known-unknown check.
var seriesLikeToken = regexp.MustCompile(`\d{3,}`)

// DecisionKind is the closed set of routing outcomes.
type DecisionKind string

const (
	DecisionListAll       DecisionKind = "list_all"
	DecisionFunnelTrigger DecisionKind = "funnel_trigger"
	DecisionUnknownSeries DecisionKind = "unknown_series"
	DecisionDirect        DecisionKind = "direct"
)

// Decision is the router's classification of one turn.
type Decision struct {
	Kind           DecisionKind
	Scenario       model.Scenario // set when Kind == DecisionFunnelTrigger
	UnknownTokens  []string       // set when Kind == DecisionUnknownSeries
	Intent         model.Intent   // set when Kind == DecisionDirect
}

// Activator decides whether a query should open the funnel, and which
// scenario to use. Satisfied by *funnel.Controller.
type Activator interface {
	ShouldActivate(query string, intent model.Intent) (bool, model.Scenario)
}

// SeriesLookup reports whether a series key is known to the catalog.
type SeriesLookup interface {
	HasSeries(key string) bool
	Series() []string
}

// Route implements the router's decision order, first match wins.
func Route(query string, intent model.Intent, activator Activator, cat SeriesLookup) Decision {
	lower := strings.ToLower(query)

	if containsAny(lower, listAllPhrases) {
		return Decision{Kind: DecisionListAll}
	}

	if active, scenario := activator.ShouldActivate(query, intent); active {
		return Decision{Kind: DecisionFunnelTrigger, Scenario: scenario}
	}

	if unknown := unknownSeriesTokens(query, intent, cat); len(unknown) > 0 {
		return Decision{Kind: DecisionUnknownSeries, UnknownTokens: unknown}
	}

	return Decision{Kind: DecisionDirect, Intent: intent}
}

// unknownSeriesTokens returns every digit token in the query that looks
// like a series key but names no known series, provided the query named
// no valid model or series at all (a valid hit anywhere makes the query
// "known").
func unknownSeriesTokens(query string, intent model.Intent, cat SeriesLookup) []string {
	if len(intent.ModelNames) > 0 || len(intent.SeriesKeys) > 0 {
		return nil
	}

	candidates := seriesLikeToken.FindAllString(query, -1)
	if len(candidates) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, tok := range candidates {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if !cat.HasSeries(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// SortedSeries returns the catalog's series keys sorted, for building the
// "here are the valid series" message.
func SortedSeries(cat SeriesLookup) []string {
	series := append([]string(nil), cat.Series()...)
	sort.Strings(series)
	return series
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

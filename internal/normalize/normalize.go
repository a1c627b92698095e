// Package normalize maps raw spreadsheet headers and free-text column
// references onto canonical column names.
package normalize

import (
	"strings"
	"unicode"
)

// DefaultSynonymThreshold is the minimum similarity score between a cleaned
// header and a synonym alias for the canonical replacement to apply.
const DefaultSynonymThreshold = 85

// SynonymPair maps a known alias or abbreviation to its canonical token.
// The table is an ordered slice, not a map: the first alias scoring above
// the threshold wins, so iteration order is part of the contract.
type SynonymPair struct {
	Alias     string
	Canonical string
}

// DefaultSynonyms covers the abbreviations that show up in the sales
// workbooks this tool is pointed at. Order matters; more specific aliases
// come first.
var DefaultSynonyms = []SynonymPair{
	{Alias: "sale_amount", Canonical: "revenue"},
	{Alias: "order_dt", Canonical: "order_date"},
	{Alias: "qty", Canonical: "quantity"},
	{Alias: "amt", Canonical: "amount"},
	{Alias: "rev", Canonical: "revenue"},
	{Alias: "cust_id", Canonical: "customer_id"},
	{Alias: "prod", Canonical: "product"},
	{Alias: "desc", Canonical: "description"},
	{Alias: "pct", Canonical: "percent"},
	{Alias: "num", Canonical: "number"},
}

// Normalizer rewrites raw headers into canonical column names.
type Normalizer struct {
	Synonyms  []SynonymPair
	Threshold int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		Synonyms:  DefaultSynonyms,
		Threshold: DefaultSynonymThreshold,
	}
}

// Clean lowercases a header, turns spaces and hyphens into underscores, and
// strips every other non-alphanumeric rune. Pure; no synonym lookup.
func Clean(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r == ' ' || r == '-':
			b.WriteRune('_')
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the canonical form of a raw header: Clean first, then
// the first synonym alias whose similarity score exceeds the threshold
// replaces the cleaned name with its canonical value. Normalizing an
// already-canonical name returns it unchanged.
func (n *Normalizer) Normalize(raw string) string {
	cleaned := Clean(raw)
	if cleaned == "" {
		return cleaned
	}
	for _, pair := range n.Synonyms {
		if cleaned == pair.Canonical {
			return cleaned
		}
		if Score(cleaned, pair.Alias) > n.Threshold {
			return pair.Canonical
		}
	}
	return cleaned
}

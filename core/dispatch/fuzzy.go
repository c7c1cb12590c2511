package dispatch

import (
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/thoas/go-funk"
)

const (
	SuggestionThreshold = 0.6
	MaxSuggestions      = 5
)

// Suggest returns up to MaxSuggestions candidates that look like input, in
// candidate order. A candidate qualifies when one string is a prefix or
// substring of the other, or when their similarity exceeds SuggestionThreshold.
func Suggest(input string, candidates []string) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return nil
	}

	var out []string
	for _, candidate := range candidates {
		c := strings.ToLower(candidate)
		if c == "" {
			continue
		}
		if strings.Contains(c, input) || strings.Contains(input, c) || Similarity(input, c) > SuggestionThreshold {
			out = append(out, candidate)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

// Similarity is 1 - distance/maxLength, in [0, 1].
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(editDistance(ra, rb))/float64(longest)
}

// EditDistance counts insertions, deletions, substitutions and adjacent
// transpositions needed to turn a into b.
func EditDistance(a, b string) int {
	return editDistance([]rune(a), []rune(b))
}

func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Three rolling rows: two back, previous, current.
	prev2 := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(b)]
}

// Search ranks commands whose name or aliases fuzzily contain query, best first.
func Search(query string, commands []*Command) []*Command {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var targets []string
	var owners []*Command
	for _, cmd := range commands {
		for _, name := range cmd.Names() {
			targets = append(targets, name)
			owners = append(owners, cmd)
		}
	}

	var out []*Command
	for _, match := range fuzzy.Find(query, targets) {
		cmd := owners[match.Index]
		if !funk.Contains(out, cmd) {
			out = append(out, cmd)
		}
	}
	return out
}

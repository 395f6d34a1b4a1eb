package library

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// TokenSortRatio scores a and b from 0 to 100 after lowercasing, stripping
// punctuation and sorting words, so word order does not matter. The score is
// the indel similarity: only insertions and deletions count, so a substituted
// character costs two edits.
func TokenSortRatio(a, b string) int {
	ra, rb := []rune(sortedTokens(a)), []rune(sortedTokens(b))
	total := len(ra) + len(rb)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	dist := total - 2*lcsLength(ra, rb)
	return int(math.Round(100 * float64(total-dist) / float64(total)))
}

// lcsLength is the length of the longest common subsequence of a and b.
func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func sortedTokens(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// FuzzyMatch scores every choice against query and returns those at or above
// threshold, best first. Equal scores keep alphabetical order.
func FuzzyMatch(query string, choices []string, threshold int) []Match {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var matches []Match
	for _, c := range choices {
		if score := TokenSortRatio(query, c); score >= threshold {
			matches = append(matches, Match{Name: c, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Name < matches[j].Name
	})
	return matches
}

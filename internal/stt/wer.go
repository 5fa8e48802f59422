package stt

import (
	"strings"
	"unicode"
)

// ErrorRate summarizes how a hypothesis transcript diverges from a
// reference transcript.
type ErrorRate struct {
	WER           float64 // (subs + ins + dels) / reference words
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// WordErrorRate aligns hypothesis against reference at the word level
// and reports the classic WER breakdown. Both inputs are lowercased,
// stripped of punctuation, and whitespace-collapsed first, so "Hello,
// world!" and "hello world" compare equal.
func WordErrorRate(reference, hypothesis string) ErrorRate {
	ref := splitNormalized(reference)
	hyp := splitNormalized(hypothesis)

	n, m := len(ref), len(hyp)
	if n == 0 {
		return ErrorRate{Insertions: m, WER: 0}
	}

	// Levenshtein over words.
	dist := make([][]int, n+1)
	for i := range dist {
		dist[i] = make([]int, m+1)
		dist[i][0] = i
	}
	for j := 0; j <= m; j++ {
		dist[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				dist[i][j] = dist[i-1][j-1]
				continue
			}
			dist[i][j] = 1 + min(dist[i-1][j-1], min(dist[i-1][j], dist[i][j-1]))
		}
	}

	// Walk the table back to attribute each edit.
	var subs, ins, dels int
	for i, j := n, m; i > 0 || j > 0; {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1]:
			i--
			j--
		case i > 0 && j > 0 && dist[i][j] == dist[i-1][j-1]+1:
			subs++
			i--
			j--
		case i > 0 && dist[i][j] == dist[i-1][j]+1:
			dels++
			i--
		default:
			ins++
			j--
		}
	}

	return ErrorRate{
		WER:           float64(subs+ins+dels) / float64(n),
		Substitutions: subs,
		Insertions:    ins,
		Deletions:     dels,
		RefWords:      n,
	}
}

// splitNormalized lowercases, drops punctuation, and splits into words.
func splitNormalized(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}

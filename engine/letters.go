package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxLetters is the loss threshold.
const MaxLetters = 5

// Word is the five-letter word spelled out by a defender's bails.
type Word string

const DefaultWord Word = "SKATE"

var upper = cases.Upper(language.Und)

// NewWord normalises raw to upper case and checks it has MaxLetters letters.
func NewWord(raw string) (Word, error) {
	w := upper.String(strings.TrimSpace(raw))
	if n := utf8.RuneCountInString(w); n != MaxLetters {
		return "", fmt.Errorf("game word %q must have %d letters, has %d", raw, MaxLetters, n)
	}
	return Word(w), nil
}

// Label is the display form of n accrued letters: the first n letters of
// the word. Presentation only; completion is decided on the counter.
func (w Word) Label(n int) string {
	n = clampLetters(n)
	runes := []rune(string(w))
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n])
}

// Letter is the single letter handed out for the nth bail (1-based).
func (w Word) Letter(n int) string {
	if n < 1 {
		return ""
	}
	runes := []rune(string(w))
	n = clampLetters(n)
	if n > len(runes) {
		return ""
	}
	return string(runes[n-1])
}

// AddLetter returns the counter after one more bail, capped at MaxLetters.
func AddLetter(count int) int {
	return clampLetters(count + 1)
}

// Lost reports whether count has reached the loss threshold.
func Lost(count int) bool {
	return count >= MaxLetters
}

// Winner decides completion from the two counters. At most one of them can
// reach the threshold since only one counter moves per round.
func Winner(m Match) (string, bool) {
	switch {
	case Lost(m.P1Letters):
		return m.Players[1], true
	case Lost(m.P2Letters):
		return m.Players[0], true
	}
	return "", false
}

func clampLetters(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxLetters {
		return MaxLetters
	}
	return n
}

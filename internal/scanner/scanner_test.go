package scanner

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanFirstMatchWins(t *testing.T) {
	s := New(0, 0, 0)
	var hitA, hitB int
	s.AddPattern(regexp.MustCompile(`^#include "(.+)"`), func(groups []string) { hitA++ })
	s.AddPattern(regexp.MustCompile(`^#include`), func(groups []string) { hitB++ })

	matched := s.Scan([]string{`#include "foo.h"`})
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, hitA)
	assert.Equal(t, 0, hitB, "the first registered pattern wins even though both match")
}

func TestScanStopsAfterInitialLinesTolerance(t *testing.T) {
	s := New(1, 0, 0)
	var matches []string
	s.AddPattern(regexp.MustCompile(`^MATCH`), func(groups []string) { matches = append(matches, groups[0]) })

	lines := []string{"noise", "noise", "MATCH one"}
	matched := s.Scan(lines)

	assert.Equal(t, 0, matched, "two unmatched lines exceed the initial tolerance of one, so scanning stops before the match")
	assert.Empty(t, matches)
}

func TestScanStopsAfterLaterLinesTolerance(t *testing.T) {
	s := New(5, 1, 0)
	var matches []string
	s.AddPattern(regexp.MustCompile(`^MATCH`), func(groups []string) { matches = append(matches, groups[0]) })

	lines := []string{"MATCH first", "noise", "noise", "MATCH second"}
	matched := s.Scan(lines)

	assert.Equal(t, 1, matched)
	assert.Equal(t, []string{"MATCH first"}, matches)
}

func TestScanRespectsMaximumMatches(t *testing.T) {
	s := New(0, 10, 2)
	var matches []string
	s.AddPattern(regexp.MustCompile(`^MATCH`), func(groups []string) { matches = append(matches, groups[0]) })

	lines := []string{"MATCH one", "MATCH two", "MATCH three"}
	matched := s.Scan(lines)

	assert.Equal(t, 2, matched)
	assert.Len(t, matches, 2)
}

// Package scanner implements line-oriented regular expression scanning of
// source files and captured process output, used to discover implicit
// dependencies (spec §4.5 "Scanner").
package scanner

import "regexp"

// MatchFunc is invoked with the submatches of a line that matched a
// Pattern's regular expression (index 0 is the whole match). It is the
// script-side callback a Filter pins (see internal/script).
type MatchFunc func(groups []string)

// Pattern pairs a compiled regular expression with the callback invoked
// for every line it matches (grounded on the original Scanner::add_pattern
// taking a regex plus a Lua match function).
type Pattern struct {
	Regex *regexp.Regexp
	Match MatchFunc
}

// Scanner holds an ordered collection of Patterns plus the tolerance
// policy controlling how many consecutive unmatched lines are allowed
// before scanning gives up (spec §4.5).
type Scanner struct {
	InitialLines   int // unmatched lines tolerated before the first match
	LaterLines     int // unmatched lines tolerated after the first match
	MaximumMatches int // 0 means unlimited

	patterns []Pattern

	// Running state for ScanLine, reset by Scan and by Reset.
	matched      int
	matchCount   int
	unmatchedRun int
	stopped      bool
}

// New constructs a Scanner with the given tolerance policy.
func New(initialLines, laterLines, maximumMatches int) *Scanner {
	return &Scanner{
		InitialLines:   max(0, initialLines),
		LaterLines:     max(0, laterLines),
		MaximumMatches: max(0, maximumMatches),
	}
}

// AddPattern registers regex/match as one more Pattern, matched in the
// order patterns were added (first match wins per line).
func (s *Scanner) AddPattern(regex *regexp.Regexp, match MatchFunc) {
	s.patterns = append(s.patterns, Pattern{Regex: regex, Match: match})
}

// Patterns returns the registered patterns in insertion order.
func (s *Scanner) Patterns() []Pattern { return s.patterns }

// Reset clears the running tolerance/match state, allowing a Scanner to
// be reused from a clean slate across independent batches or streams.
func (s *Scanner) Reset() {
	s.matched = 0
	s.matchCount = 0
	s.unmatchedRun = 0
	s.stopped = false
}

// Scan applies every pattern to each of lines in order, stopping early
// once the tolerance policy is exceeded. It returns the number of lines
// that matched some pattern. Scan resets any state left over from a
// previous Scan or ScanLine call before it starts.
func (s *Scanner) Scan(lines []string) int {
	s.Reset()
	for _, line := range lines {
		s.ScanLine(line)
	}
	return s.matched
}

// ScanLine applies the tolerance policy and registered patterns to a
// single line, carrying state across calls so a Scanner can be fed one
// line at a time as a process's output is captured (spec §4.6 "each line
// is run through the corresponding Scanner if any, then through the
// Filter"). It returns whether the line matched a pattern. Once the
// tolerance policy trips, ScanLine stops matching permanently: every
// later line returns false without being compared against any pattern,
// matching §4.5's "remaining lines pass through unfiltered".
func (s *Scanner) ScanLine(line string) bool {
	if s.stopped {
		return false
	}
	if s.MaximumMatches > 0 && s.matchCount >= s.MaximumMatches {
		s.stopped = true
		return false
	}

	if s.applyLine(line) {
		s.matched++
		s.matchCount++
		s.unmatchedRun = 0
		return true
	}

	s.unmatchedRun++
	tolerance := s.LaterLines
	if s.matched == 0 {
		tolerance = s.InitialLines
	}
	if s.unmatchedRun > tolerance {
		s.stopped = true
	}
	return false
}

// applyLine runs every pattern against line in order and invokes the
// first one that matches (first-match-wins, spec §4.5).
func (s *Scanner) applyLine(line string) bool {
	for _, p := range s.patterns {
		if groups := p.Regex.FindStringSubmatch(line); groups != nil {
			if p.Match != nil {
				p.Match(groups)
			}
			return true
		}
	}
	return false
}

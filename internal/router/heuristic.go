package router

import "regexp"

// exploreTriggerPattern and passthroughTriggerPattern implement the
// explicit text overrides: an @muninn directive must
// start a line, so a directive mentioned in pasted code or logs elsewhere
// in the message does not accidentally flip the route.
var (
	exploreTriggerPattern     = regexp.MustCompile(`(?im)^@muninn\s+explore`)
	passthroughTriggerPattern = regexp.MustCompile(`(?im)^@muninn\s+passthrough`)
)

func hasExploreTrigger(text string) bool     { return exploreTriggerPattern.MatchString(text) }
func hasPassthroughTrigger(text string) bool { return passthroughTriggerPattern.MatchString(text) }

// heuristicTriggers are the whole-word, case-insensitive phrases that force
// Rlm under the Heuristic strategy.
var heuristicTriggers = []string{
	`\bexplore\b`,
	`\bfind all\b`,
	`\bunderstand\b`,
	`\bhow does\b.*\bwork\b`,
	`\btrace\b`,
	`\bcallers of\b`,
	`\bimplementations of\b`,
}

// heuristicMatcher compiles every trigger pattern once at construction
// rather than per call.
type heuristicMatcher struct {
	patterns []*regexp.Regexp
	labels   []string
}

func newHeuristicMatcher() *heuristicMatcher {
	m := &heuristicMatcher{}
	for _, phrase := range heuristicTriggers {
		m.patterns = append(m.patterns, regexp.MustCompile(`(?is)`+phrase))
		m.labels = append(m.labels, phrase)
	}
	return m
}

// match reports the first trigger phrase found in text, if any.
func (m *heuristicMatcher) match(text string) (string, bool) {
	for i, p := range m.patterns {
		if p.MatchString(text) {
			return m.labels[i], true
		}
	}
	return "", false
}

// Package scan provides an incremental, rule-prioritized pattern scanner
// that turns a byte stream arriving in arbitrary slices into a sequence of
// labeled events. It is the terminal consumer of a filter.Pipeline: protocol
// parsers install an ordered rule set, receive a callout per match, and may
// swap the active rules from inside their own callout to move between
// protocol phases.
package scan

import (
	"regexp"

	"github.com/c360/camstream/errors"
)

// Rule pairs an anchored pattern with the label delivered on a match.
// Patterns always match at the start of the unconsumed buffer; the
// constructor anchors them, callers write plain patterns.
type Rule struct {
	Label string
	re    *regexp.Regexp
}

// NewRule compiles pattern anchored to the buffer start.
func NewRule(label, pattern string) (Rule, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)`)
	if err != nil {
		return Rule{}, errors.WrapInvalid(err, "scan", "NewRule", "invalid rule pattern")
	}
	return Rule{Label: label, re: re}, nil
}

// MustRule is NewRule for package-level rule tables; it panics on a bad
// pattern.
func MustRule(label, pattern string) Rule {
	r, err := NewRule(label, pattern)
	if err != nil {
		panic(err)
	}
	return r
}

// RuleSet is an ordered list of rules. The first rule in list order that
// matches the buffer start wins.
type RuleSet []Rule

// Consumer receives scanner events. Match delivers a labeled event with its
// capture groups (group 0, the full match, is omitted). Raw delivers
// verbatim bytes while no rule set is active; the slice is only valid for
// the duration of the call. End is the terminal event, delivered exactly
// once when the upstream closes.
type Consumer interface {
	Match(label string, groups []string)
	Raw(p []byte)
	End(err error)
}

// Scanner accumulates bytes and matches the active rule set against the
// start of the unconsumed buffer. With a nil rule set every Feed delivers a
// single Raw event instead.
//
// A Scanner is confined to one goroutine. Consumer callouts run on the
// feeding goroutine and may call SetRules or TakeBuffered re-entrantly; the
// active rule set is re-read after every delivered event.
type Scanner struct {
	consumer Consumer
	rules    RuleSet
	buf      []byte
	ended    bool
}

// NewScanner creates a scanner delivering to consumer with rules active.
// A nil rules value starts the scanner in raw mode.
func NewScanner(consumer Consumer, rules RuleSet) *Scanner {
	return &Scanner{consumer: consumer, rules: rules}
}

// SetRules swaps the active rule set. Takes effect immediately, including
// for data already buffered: when called from inside a Match callout the
// remainder of the current Feed pass matches against the new rules. nil
// switches to raw mode.
func (s *Scanner) SetRules(rules RuleSet) {
	s.rules = rules
}

// Rules returns the active rule set.
func (s *Scanner) Rules() RuleSet {
	return s.rules
}

// TakeBuffered surrenders the unconsumed buffer, typically to replay it
// through a filter stage inserted after a framing decision.
func (s *Scanner) TakeBuffered() []byte {
	buf := s.buf
	s.buf = nil
	return buf
}

// Feed appends p and delivers every event it completes. Implements
// filter.Sink.
func (s *Scanner) Feed(p []byte) error {
	if s.rules == nil {
		data := p
		if len(s.buf) > 0 {
			data = append(s.buf, p...)
			s.buf = nil
		}
		if len(data) > 0 {
			s.consumer.Raw(data)
		}
		return nil
	}

	s.buf = append(s.buf, p...)
	s.scan()
	return nil
}

// Close delivers the terminal End event exactly once. Bytes still buffered
// without a completed match are dropped; the consumer knows from its own
// state whether that truncation matters. Implements filter.Sink.
func (s *Scanner) Close(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.consumer.End(err)
}

// scan matches rules against the buffer start until nothing matches,
// re-reading the active rule set after every event so callouts can swap it.
func (s *Scanner) scan() {
	for {
		rules := s.rules
		if rules == nil {
			// Swapped to raw mode mid-pass: flush the remainder
			if len(s.buf) > 0 {
				data := s.buf
				s.buf = nil
				s.consumer.Raw(data)
			}
			return
		}

		matched := false
		for _, r := range rules {
			m := r.re.FindSubmatchIndex(s.buf)
			if m == nil {
				continue
			}
			// A zero-width match would consume nothing and spin forever
			if m[1] == 0 {
				continue
			}

			groups := make([]string, 0, len(m)/2-1)
			for gi := 1; gi < len(m)/2; gi++ {
				if m[2*gi] < 0 {
					groups = append(groups, "")
				} else {
					groups = append(groups, string(s.buf[m[2*gi]:m[2*gi+1]]))
				}
			}

			// Consume before the callout so re-entrant calls see a
			// consistent buffer
			s.buf = s.buf[m[1]:]
			matched = true
			s.consumer.Match(r.Label, groups)
			break
		}

		if !matched {
			return
		}
	}
}

package patternsafety

import (
	"sync/atomic"

	"github.com/dlclark/regexp2"
	"github.com/sirupsen/logrus"
)

// SafePattern is a compiled pattern whose match attempts run under the
// validator's execution budget. A match that exceeds the budget counts
// as a non-match; the engine never hangs on caller-supplied input.
type SafePattern struct {
	pattern  string
	re       *regexp2.Regexp
	logger   *logrus.Logger
	timeouts uint64
}

func (p *SafePattern) String() string {
	return p.pattern
}

// MatchString reports whether the content matches. Budget expiry and
// engine errors both report false.
func (p *SafePattern) MatchString(content string) bool {
	matched, err := p.re.MatchString(content)
	if err != nil {
		atomic.AddUint64(&p.timeouts, 1)
		if p.logger != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"pattern":        p.pattern,
				"content_length": len(content),
			}).Warn("pattern match aborted, treating as non-match")
		}
		return false
	}
	return matched
}

// FindString returns the first matched substring, or "" when there is no
// match or the budget expired.
func (p *SafePattern) FindString(content string) string {
	m, err := p.re.FindStringMatch(content)
	if err != nil {
		atomic.AddUint64(&p.timeouts, 1)
		return ""
	}
	if m == nil {
		return ""
	}
	return m.String()
}

// TimeoutCount reports how many match attempts were aborted by the
// execution budget since the pattern was compiled.
func (p *SafePattern) TimeoutCount() uint64 {
	return atomic.LoadUint64(&p.timeouts)
}

// Package testhook marks test-case boundaries in the trace and records
// verdicts in the results file, so the downstream fault-localization
// engine can attribute trace segments to passing and failing tests.
package testhook

import (
	"regexp"

	"github.com/viant/aardwolf/runtime"
)

// Wrap returns fn wrapped so that invoking it emits an external marker
// named name, runs fn, and records PASS or FAIL from fn's error. When
// the process is not running inside an aardwolf environment, fn is
// returned unchanged.
func Wrap(name string, fn func() error) func() error {
	if !runtime.Enabled() {
		return fn
	}
	return func() error {
		runtime.WriteExternal(name)
		err := fn()
		runtime.WriteTestStatus(name, err == nil)
		return err
	}
}

// Option filters which entries WrapAll touches.
type Option func(*config)

type config struct {
	pattern *regexp.Regexp
	ignore  map[string]bool
}

// WithPrefix wraps only tests whose name starts with prefix.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.pattern = regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + ".*")
	}
}

// WithPattern wraps only tests whose name matches the expression.
func WithPattern(expr string) Option {
	return func(c *config) {
		c.pattern = regexp.MustCompile(expr)
	}
}

// WithIgnore excludes names from wrapping.
func WithIgnore(names ...string) Option {
	return func(c *config) {
		for _, n := range names {
			c.ignore[n] = true
		}
	}
}

// WrapAll wraps every matching test in items, returning a new map. This
// is the bulk form used by test drivers that collect their cases into a
// registry before running them.
func WrapAll(items map[string]func() error, opts ...Option) map[string]func() error {
	c := &config{ignore: make(map[string]bool)}
	for _, opt := range opts {
		opt(c)
	}

	out := make(map[string]func() error, len(items))
	for name, fn := range items {
		if c.ignore[name] || (c.pattern != nil && !c.pattern.MatchString(name)) {
			out[name] = fn
			continue
		}
		out[name] = Wrap(name, fn)
	}
	return out
}

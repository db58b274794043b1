package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/scanport/pkg/config"
)

// Redactor redacts PII and credentials from log values. Scan exports carry
// recipient addresses, webhook headers and spreadsheet credentials, all of
// which end up in log arguments.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and its replacement.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
	fn          func(string) string
}

// Built-in pattern names.
const (
	PatternEmail       = "email"
	PatternBearerToken = "bearer_token"
	PatternCredential  = "credential"
	PatternPassword    = "password"
	PatternPhone       = "phone"
)

// NewRedactor creates a Redactor with the built-in patterns followed by
// customPatterns. Invalid custom patterns are skipped.
func NewRedactor(customPatterns []config.RedactPattern) *Redactor {
	r := &Redactor{}
	r.addDefaultPatterns()

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}

	return r
}

func (r *Redactor) addDefaultPatterns() {
	r.patterns = append(r.patterns,
		&redactPattern{
			name:  PatternEmail,
			regex: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
			fn:    RedactEmail,
		},
		&redactPattern{
			name:        PatternBearerToken,
			regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~_+/]+=*`),
			replacement: "Bearer ***",
		},
		&redactPattern{
			name:        PatternCredential,
			regex:       regexp.MustCompile(`(?i)(api[-_]?key|access[-_]?token|credential)([:=]\s*)[^\s,;]+`),
			replacement: "$1$2***",
		},
		&redactPattern{
			name:        PatternPassword,
			regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)[:=]\s*[^\s]+`),
			replacement: "$1: ***",
		},
		&redactPattern{
			name:        PatternPhone,
			regex:       regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
			replacement: "***-***-****",
		},
	)
}

// RedactString redacts PII from a string value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}

	redacted := value
	for _, p := range r.patterns {
		if p.fn != nil {
			redacted = p.regex.ReplaceAllStringFunc(redacted, p.fn)
			continue
		}
		redacted = p.regex.ReplaceAllString(redacted, p.replacement)
	}
	return redacted
}

// RedactAttr redacts a single attribute. Values under sensitive keys are
// masked entirely; string values are pattern-redacted; groups recurse.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if r == nil {
		return a
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, maskValue(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))
	default:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
		if err, ok := v.Any().(error); ok && v.Kind() == slog.KindAny {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
		return slog.Attr{Key: a.Key, Value: v}
	}
}

// sensitiveKeys are attribute key fragments whose values are always masked.
var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"auth", "authorization", "credential",
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// maskValue keeps a short prefix of a sensitive value for debugging.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}

// RedactEmail redacts an email address partially (shows first char and domain).
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	username := parts[0]
	domain := parts[1]

	if len(username) == 0 {
		return "***@" + domain
	}

	return string(username[0]) + "***@" + domain
}

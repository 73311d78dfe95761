package logger

import (
	"io"
	"regexp"
)

// Redactor masks credentials before log lines reach a sink
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor with the default credential patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Anthropic / OpenAI keys
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),

			// Bearer tokens (Netlify, Vercel, Render)
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// Render API keys
			regexp.MustCompile(`rnd_[a-zA-Z0-9]{16,}`),

			// Netlify personal access tokens
			regexp.MustCompile(`nfp_[a-zA-Z0-9]{20,}`),

			// Gumroad license keys
			regexp.MustCompile(`[A-F0-9]{8}-[A-F0-9]{8}-[A-F0-9]{8}-[A-F0-9]{8}`),

			// key=value style secrets
			regexp.MustCompile(`(?i)(token|api_key|license_key)["\s:=]+[a-zA-Z0-9._-]{8,}`),
			regexp.MustCompile(`(?i)secret["\s:=]+[^\s"]+`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact masks every known secret in s
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so callers do not treat a shortened
// redacted line as a short write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	redacted := w.redactor.Redact(string(p))
	if _, err := w.writer.Write([]byte(redacted)); err != nil {
		return 0, err
	}
	return len(p), nil
}

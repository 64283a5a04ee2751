// Package safejson provides tolerant JSON parsing with recovery strategies
// for content that may be truncated, mid-write, or sloppily generated.
package safejson

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Options controls parse behavior.
type Options struct {
	// AttemptRecovery enables the recovery strategies on parse failure.
	AttemptRecovery bool
	// Validate, when set, must accept the decoded value for a parse (or
	// recovery) to count as successful.
	Validate func(data any) bool
	// DefaultValue is returned in Result.Data when parsing fails outright.
	DefaultValue any
	// Context names the caller for log lines.
	Context string
}

// Result is the outcome of a tolerant parse.
type Result struct {
	Success   bool
	Data      any
	Error     error
	Recovered bool
}

// Parse decodes content, optionally attempting recovery strategies in order:
// balanced-substring extraction, common-issue fixes, and truncation to the
// last valid close. The first recovered candidate that parses and validates
// wins.
func Parse(content string, opts Options) Result {
	data, err := tryParse(content, opts.Validate)
	if err == nil {
		return Result{Success: true, Data: data}
	}

	if opts.AttemptRecovery {
		for _, strategy := range []func(string) string{
			extractBalanced,
			fixCommonIssues,
			truncateToLastClose,
		} {
			candidate := strategy(content)
			if candidate == "" || candidate == content {
				continue
			}
			if data, rerr := tryParse(candidate, opts.Validate); rerr == nil {
				log.Debug().
					Str("context", opts.Context).
					Msg("Recovered malformed JSON")
				return Result{Success: true, Data: data, Recovered: true}
			}
		}
	}

	if opts.Context != "" {
		log.Debug().Str("context", opts.Context).Err(err).Msg("JSON parse failed")
	}
	return Result{Success: false, Data: opts.DefaultValue, Error: err}
}

// HasRequiredFields reports whether data is a JSON object containing every
// named field.
func HasRequiredFields(data any, names []string) bool {
	obj, ok := data.(map[string]any)
	if !ok {
		return false
	}
	for _, name := range names {
		if _, present := obj[name]; !present {
			return false
		}
	}
	return true
}

// Unmarshal decodes into a typed destination with the same recovery
// strategies as Parse.
func Unmarshal(content string, dest any, opts Options) error {
	if err := json.Unmarshal([]byte(content), dest); err == nil {
		return nil
	} else if !opts.AttemptRecovery {
		return err
	}

	var lastErr error
	for _, strategy := range []func(string) string{
		extractBalanced,
		fixCommonIssues,
		truncateToLastClose,
	} {
		candidate := strategy(content)
		if candidate == "" || candidate == content {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), dest); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = json.Unmarshal([]byte(content), dest)
	}
	return lastErr
}

func tryParse(content string, validate func(any) bool) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, err
	}
	if validate != nil && !validate(data) {
		return nil, errValidation
	}
	return data, nil
}

type validationError struct{}

func (validationError) Error() string { return "validation failed" }

var errValidation = validationError{}

// extractBalanced returns the first balanced {...} or [...] substring,
// tracking string and escape state so braces inside strings don't count.
func extractBalanced(content string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if content[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// fixCommonIssues strips a BOM, trims whitespace, and removes trailing
// commas before closing braces/brackets.
func fixCommonIssues(content string) string {
	s := strings.TrimPrefix(content, "\uFEFF")
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' && inString {
			b.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if !inString && c == ',' {
			// Look ahead past whitespace for a closer.
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the trailing comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// truncateToLastClose walks backward from end of content, trying each
// closing brace/bracket as the end, and returns the longest prefix that
// parses.
func truncateToLastClose(content string) string {
	for i := len(content) - 1; i >= 0; i-- {
		c := content[i]
		if c != '}' && c != ']' {
			continue
		}
		prefix := content[:i+1]
		var probe any
		if err := json.Unmarshal([]byte(prefix), &probe); err == nil {
			return prefix
		}
	}
	return ""
}

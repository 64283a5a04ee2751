// Package analysis classifies agent responses and extracts the entities and
// topics they touch. The output feeds the coaching service.
package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/DevArk-AI/devark/pkg/models"
)

// topicMarkers maps a topic label to the keywords that signal it. Matching
// is case-insensitive substring search over the response text.
var topicMarkers = map[string][]string{
	"Testing":        {"test", "spec", "coverage", "assert"},
	"Bug Fix":        {"fix", "bug", "issue", "broken", "error", "crash"},
	"Authentication": {"auth", "login", "token", "oauth", "session cookie"},
	"Database":       {"database", "migration", "schema", "sql", "query"},
	"Refactoring":    {"refactor", "rename", "extract", "cleanup", "restructure"},
	"Documentation":  {"readme", "document", "docstring", "comment"},
	"Performance":    {"performance", "slow", "optimize", "latency", "cache"},
	"API":            {"endpoint", "api", "route", "handler", "request"},
	"UI":             {"component", "render", "style", "css", "layout"},
	"Configuration":  {"config", "environment", "env var", "settings"},
	"Deployment":     {"deploy", "docker", "ci", "pipeline", "release"},
}

// freeTextPath matches file-looking references in prose: at least one
// separator and a short extension, e.g. src/auth/login.go or lib\db.ts.
var freeTextPath = regexp.MustCompile(`[\w.\-]+(?:[/\\][\w.\-]+)+\.\w{1,5}`)

// ClassifyOutcome buckets a response into one of four outcomes. Cancellation
// with output counts as partial progress; cancellation with nothing to show
// is blocked.
func ClassifyOutcome(resp models.Response) models.ResponseOutcome {
	if resp.Success {
		return models.OutcomeSuccess
	}
	if !resp.Cancelled {
		return models.OutcomeError
	}
	if strings.TrimSpace(resp.Text) != "" {
		return models.OutcomePartial
	}
	return models.OutcomeBlocked
}

// ExtractEntities unions the files a response touched: the explicit
// filesModified list, path-like tool-call arguments, and file references in
// the free text. Order follows first occurrence, duplicates removed.
func ExtractEntities(resp models.Response) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, f := range resp.FilesModified {
		add(f)
	}
	for _, tc := range resp.ToolCalls {
		for _, key := range []string{"path", "file", "file_path", "filePath"} {
			if v, ok := tc.Args[key].(string); ok {
				add(v)
			}
		}
	}
	for _, m := range freeTextPath.FindAllString(resp.Text, -1) {
		add(m)
	}
	return out
}

// ExtractTopics returns the topic labels whose keyword clusters match the
// response text, sorted for stable output.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for topic, markers := range topicMarkers {
		for _, m := range markers {
			if strings.Contains(lower, m) {
				out = append(out, topic)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// HasTopic reports whether topics contains the given label.
func HasTopic(topics []string, label string) bool {
	for _, t := range topics {
		if t == label {
			return true
		}
	}
	return false
}

// Analyze runs the full response analysis: outcome, entities, topics and a
// one-line summary.
func Analyze(resp models.Response) models.ResponseAnalysis {
	outcome := ClassifyOutcome(resp)
	entities := ExtractEntities(resp)
	topics := ExtractTopics(resp.Text)
	return models.ResponseAnalysis{
		Summary:          summarize(outcome, entities, topics),
		Outcome:          outcome,
		TopicsAddressed:  topics,
		EntitiesModified: entities,
	}
}

func summarize(outcome models.ResponseOutcome, entities, topics []string) string {
	var verb string
	switch outcome {
	case models.OutcomeSuccess:
		verb = "Completed"
	case models.OutcomePartial:
		verb = "Partially completed"
	case models.OutcomeBlocked:
		verb = "Blocked before completing"
	default:
		verb = "Failed"
	}
	switch {
	case len(topics) > 0 && len(entities) > 0:
		return fmt.Sprintf("%s work on %s touching %d file(s)", verb, strings.ToLower(topics[0]), len(entities))
	case len(entities) > 0:
		return fmt.Sprintf("%s changes across %d file(s)", verb, len(entities))
	case len(topics) > 0:
		return fmt.Sprintf("%s work on %s", verb, strings.ToLower(topics[0]))
	default:
		return verb
	}
}

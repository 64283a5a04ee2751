package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPrivateTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no tags",
			input:    "Hello world",
			expected: "Hello world",
		},
		{
			name:     "single private tag",
			input:    "Hello <private>secret</private> world",
			expected: "Hello  world",
		},
		{
			name:     "multiple private tags",
			input:    "Hello <private>a</private> and <private>b</private> world",
			expected: "Hello  and  world",
		},
		{
			name:     "multiline private tag",
			input:    "Hello <private>\nmultiline\nsecret\n</private> world",
			expected: "Hello  world",
		},
		{
			name:     "entirely private",
			input:    "<private>everything</private>",
			expected: "",
		},
		{
			name:     "unmatched opening tag",
			input:    "Hello <private>unclosed",
			expected: "Hello <private>unclosed",
		},
		{
			name:     "unmatched closing tag",
			input:    "Hello </private> world",
			expected: "Hello </private> world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripPrivateTags(tt.input))
		})
	}
}

func TestStripContextTags(t *testing.T) {
	input := "Hello <devark-context>\ninjected\n</devark-context> world"
	assert.Equal(t, "Hello  world", StripContextTags(input))
	assert.Equal(t, "", strings.TrimSpace(StripContextTags("<devark-context>all</devark-context>")))
}

func TestStripAllTags(t *testing.T) {
	input := "A <private>B</private> C <devark-context>D</devark-context> E"
	assert.Equal(t, "A  C  E", StripAllTags(input))
}

func TestIsEntirelyPrivate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "not private", input: "Hello world", expected: false},
		{name: "entirely private", input: "<private>secret</private>", expected: true},
		{name: "entirely private with whitespace", input: "  <private>secret</private>  ", expected: true},
		{name: "partially private", input: "Hello <private>secret</private>", expected: false},
		{name: "back to back tags", input: "<private>a</private><private>b</private>", expected: true},
		{name: "empty string", input: "", expected: true},
		{name: "only whitespace", input: "   ", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsEntirelyPrivate(tt.input))
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no tags or whitespace",
			input:    "Hello world",
			expected: "Hello world",
		},
		{
			name:     "strips tags and collapses the hole",
			input:    "  Hello <private>secret</private> world  ",
			expected: "Hello world",
		},
		{
			name:     "strips both tag types",
			input:    "\nHello <private>s</private> and <devark-context>m</devark-context> world\n",
			expected: "Hello and world",
		},
		{
			name:     "entirely stripped content",
			input:    "  <private>secret</private>  ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestPrivacyEdgeCases(t *testing.T) {
	t.Run("nested tags match the first close", func(t *testing.T) {
		input := "<private>outer <private>inner</private> outer</private>"
		assert.Equal(t, " outer</private>", StripPrivateTags(input))
	})

	t.Run("html-like content untouched", func(t *testing.T) {
		input := "Hello <div>world</div>"
		assert.Equal(t, input, StripPrivateTags(input))
	})

	t.Run("tags are case sensitive", func(t *testing.T) {
		input := "Hello <PRIVATE>secret</PRIVATE> world"
		assert.Equal(t, input, StripPrivateTags(input))
	})

	t.Run("very long private content", func(t *testing.T) {
		input := "Hello <private>" + strings.Repeat("x", 10000) + "</private> world"
		assert.Equal(t, "Hello  world", StripPrivateTags(input))
	})
}

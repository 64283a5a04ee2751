package pathfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldIgnorePath(t *testing.T) {
	f := Default()

	assert.True(t, f.ShouldIgnorePath("/home/u/.devark/temp-standup"))
	assert.True(t, f.ShouldIgnorePath("/home/u/.devark/temp-prompt-analysis"))
	assert.True(t, f.ShouldIgnorePath("/tmp/devark-hooks"))
	assert.True(t, f.ShouldIgnorePath("/home/u/project/.cursor"))
	assert.True(t, f.ShouldIgnorePath("/home/u/project/.cursor/extensions"))

	assert.False(t, f.ShouldIgnorePath("/home/user/my-cursor-project"))
	assert.False(t, f.ShouldIgnorePath("/home/u/project/.cursorrules"))
	assert.False(t, f.ShouldIgnorePath("/home/u/real-work"))
}

func TestWindowsPaths(t *testing.T) {
	f := Default()
	assert.True(t, f.ShouldIgnorePath(`C:\Users\Dev\.devark\temp-prompt-analysis`))
	assert.True(t, f.ShouldIgnorePath(`C:\Users\Dev\AppData\Local\Programs\cursor`))
	assert.False(t, f.ShouldIgnorePath(`C:\Users\Dev\src\app`))
}

func TestStability(t *testing.T) {
	f := Default()
	variants := []string{
		"/home/u/.devark/temp-standup",
		"/home/u/.devark/temp-standup/",
		"\\home\\u\\.devark\\temp-standup",
		"/home/u/.DEVARK/TEMP-STANDUP",
	}
	for _, v := range variants {
		assert.True(t, f.ShouldIgnorePath(v), v)
	}
}

func TestEmptyInput(t *testing.T) {
	f := Default()
	assert.False(t, f.ShouldIgnorePath(""))
	assert.False(t, f.ShouldIgnorePath("   "))
}

func TestCustomPatterns(t *testing.T) {
	f := New([]string{"node_modules", ""})
	assert.True(t, f.ShouldIgnorePath("/app/node_modules/lodash"))
	assert.False(t, f.ShouldIgnorePath("/app/src"))
}

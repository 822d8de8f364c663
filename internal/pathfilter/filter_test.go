package pathfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldInclude_EmptyListsAdmitEverything(t *testing.T) {
	assert.True(t, ShouldInclude("a.txt", nil, nil))
	assert.True(t, ShouldInclude("deep/nested/file.bin", nil, nil))
}

func TestShouldInclude_ExcludeAlwaysWins(t *testing.T) {
	// Even a perfect include match loses to an exclude match.
	assert.False(t, ShouldInclude("secret.txt", []string{"*.txt"}, []string{"secret.*"}))
	assert.False(t, ShouldInclude("logs/app.log", nil, []string{"logs/**"}))
}

func TestShouldInclude_NonEmptyIncludesRestrict(t *testing.T) {
	includes := []string{"*.txt"}
	assert.True(t, ShouldInclude("notes.txt", includes, nil))
	assert.False(t, ShouldInclude("image.png", includes, nil))
}

func TestShouldInclude_StarDoesNotCrossDirectories(t *testing.T) {
	assert.False(t, ShouldInclude("sub/notes.txt", []string{"*.txt"}, nil))
	assert.False(t, ShouldInclude("a/b", []string{"?/?/?"}, nil))
}

func TestShouldInclude_DoubleStarCrossesDirectories(t *testing.T) {
	includes := []string{"**/*.txt"}
	assert.True(t, ShouldInclude("a/b/c/notes.txt", includes, nil))
	assert.True(t, ShouldInclude("notes.txt", includes, nil))
}

func TestShouldInclude_MalformedPatternNeverMatches(t *testing.T) {
	assert.False(t, ShouldInclude("a.txt", []string{"[bad"}, nil))
	// A malformed exclude cannot veto anything.
	assert.True(t, ShouldInclude("a.txt", nil, []string{"[bad"}))
}

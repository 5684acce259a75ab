package pathguard

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBad(t *testing.T) {
	tests := []struct {
		name string
		path string
		bad  bool
	}{
		{"empty denotes root", "", false},
		{"simple file", "photos/cat.jpg", false},
		{"nested dirs", "a/b/c/d.txt", false},
		{"hidden file", ".bashrc", false},
		{"unicode", "fotos/gatto-ñ-日本.png", false},
		{"trailing slash", "photos/", false},
		{"inner space", "my photos/a b.jpg", false},

		{"parent", "../etc/passwd", true},
		{"parent deep", "../../etc/passwd", true},
		{"parent inside", "a/../b", true},
		{"current dir", "./a", true},
		{"current dir inside", "a/./b", true},
		{"double slash", "a//b", true},
		{"leading slash", "/etc", true},
		{"lone slash", "/", true},
		{"backslash", `a\b`, true},
		{"colon", "c:foo", true},
		{"less than", "a<b", true},
		{"greater than", "a>b", true},
		{"quote", `a"b`, true},
		{"pipe", "a|b", true},
		{"question", "a?b", true},
		{"star", "a*b", true},
		{"nul byte", "a\x00b", true},
		{"newline", "a\nb", true},
		{"del", "a\x7fb", true},
		{"con", "CON", true},
		{"con lower", "con", true},
		{"nul with ext", "nul.txt", true},
		{"prn nested", "docs/Prn.log", true},
		{"aux", "aux", true},
		{"com1", "COM1", true},
		{"lpt9 ext", "lpt9.tar.gz", true},
		{"com0", "com0", true},
		{"com10 allowed", "COM10", false},
		{"console allowed", "console", false},
		{"leading space", " a", true},
		{"trailing space", "a ", true},
		{"trailing tab", "a\t", true},
		{"space before ext", "a .txt", true},
		{"nbsp", "a\u00a0", true},
		{"invalid utf8", "a\xffb", true},
		{"too long", strings.Repeat("a", MaxPathLen+1), true},
		{"max length", strings.Repeat("a", MaxPathLen), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bad, IsBad(tt.path))
		})
	}
}

func TestCheck_Reasons(t *testing.T) {
	tests := []struct {
		path   string
		reason Reason
	}{
		{strings.Repeat("x", MaxPathLen+1), ReasonTooLong},
		{"a\xff", ReasonInvalidUTF8},
		{"a:b", ReasonBadCharacter},
		{"COM3.txt", ReasonReservedName},
		{" a", ReasonWhitespace},
		{"..", ReasonNonNormal},
	}

	for _, tt := range tests {
		err := Default().Check(tt.path)
		require.Error(t, err, tt.path)
		assert.True(t, errors.Is(err, ErrRejected))

		var rej *RejectedError
		require.True(t, errors.As(err, &rej))
		assert.Equal(t, tt.reason, rej.Reason, tt.path)
	}
}

func TestValidator_RootMarker(t *testing.T) {
	v := &Validator{AllowRootMarker: true}
	assert.False(t, v.IsBad("/"))
	assert.False(t, v.IsBad("/photos/cat.jpg"))
	assert.True(t, v.IsBad("//photos"))
	assert.True(t, v.IsBad("/../etc"))

	strict := &Validator{}
	assert.True(t, strict.IsBad("/photos"))
	assert.True(t, strict.IsBad("photos/"))
}

func TestIsBad_ReservedNamesRegardlessOfHost(t *testing.T) {
	for _, p := range []string{"CON", "NUL", "COM1", "a/b/AUX.json"} {
		assert.True(t, IsBad(p), p)
	}
}

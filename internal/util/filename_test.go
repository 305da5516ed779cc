package util

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"empty", "", 0, "file"},
		{"already safe", "alice_2024-11-03_101500.jpg", 0, "alice_2024-11-03_101500.jpg"},
		{"spaces", "my steps.png", 0, "my_steps.png"},
		{"unix traversal", "../../etc/passwd", 0, "passwd"},
		{"windows path", `C:\Users\bob\shot.jpg`, 0, "shot.jpg"},
		{"trailing slash", "uploads/", 0, "file"},
		{"accents decomposed", "Zoë Ångström.jpg", 0, "Zoe_Angstrom.jpg"},
		{"only non ascii", "步数", 0, "file"},
		{"dot dot", "..", 0, "file"},
		{"truncated", "abcdefghij", 4, "abcd"},
		{"shell chars", "a;rm -rf *.jpg", 0, "a_rm_-rf__.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in, tt.max))
		})
	}
}

func TestSecureFilename_DefaultLimit(t *testing.T) {
	got := SecureFilename(strings.Repeat("a", 400), 0)
	assert.Len(t, got, DefaultMaxFilenameLength)
}

func TestSecureFilename_AlwaysSafe(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	alphabet := []rune("aZ09._-/\\ ~:*?\"<>|éß漢字\x00\t")

	for i := 0; i < 2000; i++ {
		n := r.Intn(300)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[r.Intn(len(alphabet))])
		}
		in := b.String()
		got := SecureFilename(in, 0)

		assert.Truef(t, got == "file" || safeName.MatchString(got), "input %q produced %q", in, got)
		assert.NotContains(t, got, "/")
		assert.NotEqual(t, "..", got)
	}
}

func TestSecureFilename_IdempotentOnSafeNames(t *testing.T) {
	for _, in := range []string{"a", "A-b_c.d", "2024-11-03", "x.jpg"} {
		assert.Equal(t, in, SecureFilename(in, 0))
		assert.Equal(t, SecureFilename(in, 0), SecureFilename(SecureFilename(in, 0), 0))
	}
}

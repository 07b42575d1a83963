package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Hola,   amigo  ", "Hola, amigo"},
		{"italic", "<i>¿Dónde está?</i>", "¿Dónde está?"},
		{"line break", "Buenos<br>días<br/>  señor", "Buenos\ndías\nseñor"},
		{"nested font", `<font color="#ffff00"><b>Danke</b> schön</font>`, "Danke schön"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"ruby annotation", "<ruby>漢字<rp>(</rp><rt>かんじ</rt><rp>)</rp></ruby>です", "漢字です"},
		{"raw newlines", "line one\r\n\r\n   line two", "line one\nline two"},
		{"only markup", "<i> </i>", ""},
		{"empty", "", ""},
		{"less than", "if a<b then stop", "if a<b then stop"},
		{"lone angle", "x <y and z", "x <y and z"},
		{"arrow", "a -> b <- c", "a -> b <- c"},
		{"bare ampersand", "AT&T  and  R&D", "AT&T and R&D"},
		{"comparison and tag", "<i>3 < 5</i>", "3 < 5"},
		{"numeric entity", "caf&#233;", "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

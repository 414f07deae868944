package gateway_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/drivegate/internal/gateway"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\notes.txt`: "notes.txt",
		"my  summer photo.jpg":  "my_summer_photo.jpg",
		".bashrc":               "bashrc",
		"...":                   "",
		"":                      "",
		"a$b;c|d.sh":            "abcd.sh",
		"报告 2024.docx":          "报告_2024.docx",
		"tab\tand\nnewline":     "tab_and_newline",
		"_hidden_.txt_":         "hidden_.txt",
	}
	for in, want := range cases {
		assert.Equal(t, want, gateway.SanitizeFilename(in), "input %q", in)
	}
}

func TestSanitizeFilename_NFC(t *testing.T) {
	decomposed := "cafe\u0301.txt"
	assert.Equal(t, "caf\u00e9.txt", gateway.SanitizeFilename(decomposed))
}

func TestSanitizeFilename_LengthCap(t *testing.T) {
	got := gateway.SanitizeFilename(strings.Repeat("é", 200))
	assert.LessOrEqual(t, len(got), 255)
	assert.Equal(t, strings.Repeat("é", 127), got, "cut on a rune boundary")
}

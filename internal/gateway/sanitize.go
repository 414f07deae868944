package gateway

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const maxFilenameBytes = 255

// SanitizeFilename turns a client-supplied upload name into a safe single
// path component. Directory parts, "..", control and shell-unsafe characters
// are dropped; Unicode letters and digits, '.', '-' and '_' are kept and runs
// of whitespace become a single '_'. Leading and trailing dots and
// underscores are stripped so the result is never hidden or relative. The
// result may be empty.
func SanitizeFilename(name string) string {
	name = norm.NFC.String(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base("/" + name)

	var b strings.Builder
	pendingSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '.', r == '-', r == '_':
		default:
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "._")
	for len(out) > maxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}
	return out
}

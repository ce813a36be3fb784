package export

import (
	"strings"
	"unicode/utf8"

	"github.com/mgpai22/cutline/internal/errs"
)

const upperhex = "0123456789ABCDEF"

// PathURL renders an absolute media path as file://localhost/... .
// Path separators are normalized to '/', spaces and reserved ASCII are
// percent-encoded, and non-ASCII text is left unescaped.
func PathURL(path string) (string, error) {
	p, err := escapePath(path)
	if err != nil {
		return "", err
	}
	return "file://localhost" + p, nil
}

func escapePath(path string) (string, error) {
	const op = "export.PathURL"

	if err := checkText(op, path); err != nil {
		return "", err
	}

	p := strings.ReplaceAll(path, "\\", "/")
	drive := hasDriveLetter(p)
	if drive {
		p = "/" + p
	}
	if !strings.HasPrefix(p, "/") {
		return "", errs.Encoding(op, errs.NoIndex, path, "media path must be absolute")
	}

	var sb strings.Builder
	sb.Grow(len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c >= utf8.RuneSelf:
			sb.WriteByte(c)
		case unreserved(c) || c == '/':
			sb.WriteByte(c)
		case c == ':' && drive && i == 2:
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(upperhex[c>>4])
			sb.WriteByte(upperhex[c&15])
		}
	}
	return sb.String(), nil
}

func hasDriveLetter(p string) bool {
	if len(p) < 3 || p[1] != ':' || p[2] != '/' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// checkText rejects text that XML 1.0 cannot carry.
func checkText(op, s string) error {
	if !utf8.ValidString(s) {
		return errs.Encoding(op, errs.NoIndex, s, "text is not valid UTF-8")
	}
	for i, r := range s {
		if !isXMLChar(r) {
			return errs.Encoding(op, errs.NoIndex, s, "character %U at byte %d cannot be represented in XML", r, i)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

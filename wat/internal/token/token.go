// Package token lexes WAT source into a flat token stream.
package token

type Kind int

const (
	LParen Kind = iota
	RParen
	Word   // keywords, instruction names, $identifiers
	Num    // integer or float literal
	Str    // quoted string
)

func (k Kind) String() string {
	switch k {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Word:
		return "word"
	case Num:
		return "number"
	case Str:
		return "string"
	}
	return "unknown"
}

type Token struct {
	Text string
	Kind Kind
	Line int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isWordChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '$', '_', '.', '-', '+', '=', ':', '/', '<', '>', '!', '*', '%', '~', '^', '|', '&', '#', '\'', '`', '?', '@':
		return true
	}
	return false
}

// Scan lexes src. Comments (both ;; line and (; block ;) forms) are dropped.
// Malformed input surfaces later as parse errors; the scanner itself never
// fails.
func Scan(src string) []Token {
	var toks []Token
	line := 1

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '\n':
			line++
		case isSpace(c):
		case c == ';' && i+1 < len(src) && src[i+1] == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			line++
		case c == '(' && i+1 < len(src) && src[i+1] == ';':
			depth := 1
			i += 2
			for i < len(src) && depth > 0 {
				switch {
				case src[i] == '(' && i+1 < len(src) && src[i+1] == ';':
					depth++
					i++
				case src[i] == ';' && i+1 < len(src) && src[i+1] == ')':
					depth--
					i++
				case src[i] == '\n':
					line++
				}
				i++
			}
			i--
		case c == '(':
			toks = append(toks, Token{"(", LParen, line})
		case c == ')':
			toks = append(toks, Token{")", RParen, line})
		case c == '"':
			start := i + 1
			i++
			for i < len(src) && src[i] != '"' {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			// A trailing backslash in an unterminated literal steps one past
			// the end of src.
			end := i
			if end > len(src) {
				end = len(src)
			}
			toks = append(toks, Token{src[start:end], Str, line})
		default:
			start := i
			for i < len(src) && isWordChar(src[i]) {
				i++
			}
			if i == start {
				// Unknown byte; skip it and let the parser report the gap.
				continue
			}
			text := src[start:i]
			i--
			kind := Word
			if isNumStart(text) {
				kind = Num
			}
			toks = append(toks, Token{text, kind, line})
		}
	}

	return toks
}

func isNumStart(s string) bool {
	c := s[0]
	if c >= '0' && c <= '9' {
		return true
	}
	if (c == '-' || c == '+') && len(s) > 1 {
		d := s[1]
		return (d >= '0' && d <= '9') || s[1:] == "inf" || s[1:] == "nan"
	}
	return false
}

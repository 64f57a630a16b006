package props

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

const maxLineLength = 1024 * 1024

// Parse reads a properties document and calls fn for every entry in document
// order. Entries are "key=value", "key:value" or "key value"; lines whose
// first non-blank character is '#' or '!' are comments; a line ending in an
// odd number of backslashes continues on the next line.
func Parse(r io.Reader, source string, fn func(key, value string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	var (
		logical    strings.Builder
		start      int
		lineNo     int
		continuing bool
	)
	flush := func() error {
		key, value, err := parseEntry(logical.String())
		logical.Reset()
		if err != nil {
			return &SyntaxError{Source: source, Line: start, Err: err}
		}
		fn(key, value)
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimLeft(strings.TrimSuffix(scanner.Text(), "\r"), " \t\f")
		if !continuing {
			if line == "" || line[0] == '#' || line[0] == '!' {
				continue
			}
			start = lineNo
		}
		if trailingBackslashes(line)%2 == 1 {
			logical.WriteString(line[:len(line)-1])
			continuing = true
			continue
		}
		logical.WriteString(line)
		continuing = false
		if err := flush(); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}
	if continuing {
		return flush()
	}
	return nil
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

func parseEntry(line string) (string, string, error) {
	end := len(line)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' {
			i++
			continue
		}
		if c == '=' || c == ':' || c == ' ' || c == '\t' || c == '\f' {
			end = i
			break
		}
	}
	rest := strings.TrimLeft(line[end:], " \t\f")
	if rest != "" && (rest[0] == '=' || rest[0] == ':') {
		rest = strings.TrimLeft(rest[1:], " \t\f")
	}

	key, err := unescape(line[:end])
	if err != nil {
		return "", "", err
	}
	value, err := unescape(rest)
	if err != nil {
		return "", "", err
	}
	return key, value, nil
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			break
		}
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			r, n, err := unicodeEscape(s[i+1:])
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// unicodeEscape decodes the hex digits following "\u". A high surrogate
// consumes the low surrogate escape after it. It returns the rune and the
// number of bytes consumed.
func unicodeEscape(s string) (rune, int, error) {
	r1, err := hex4(s)
	if err != nil {
		return 0, 0, err
	}
	if utf16.IsSurrogate(r1) && len(s) >= 10 && s[4:6] == `\u` {
		if r2, err := hex4(s[6:]); err == nil {
			if r := utf16.DecodeRune(r1, r2); r != unicode.ReplacementChar {
				return r, 10, nil
			}
		}
	}
	return r1, 4, nil
}

func hex4(s string) (rune, error) {
	if len(s) < 4 {
		return 0, fmt.Errorf("malformed \\uxxxx encoding")
	}
	v, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("malformed \\uxxxx encoding")
	}
	return rune(v), nil
}

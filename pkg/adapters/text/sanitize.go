package text

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLineSize bounds a single line of player input. A choice number never
// comes close; anything longer is a paste or garbage.
const MaxLineSize = 256

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	ErrNotANumber    = errors.New("input is not a choice number")
)

// Sanitize rejects oversized or malformed lines and strips control characters
// such as ANSI escapes, so echoing the input back cannot corrupt the terminal.
func Sanitize(line string) (string, error) {
	if len(line) > MaxLineSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(line), MaxLineSize)
	}
	if !utf8.ValidString(line) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range line {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return line, nil
	}

	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// ParseChoice turns a sanitized, 1-based choice number into a 0-based index.
// Range checking is left to the session.
func ParseChoice(input string) (int, error) {
	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, input)
	}
	return n - 1, nil
}

func isSafeControl(r rune) bool {
	return r == '\t' || r == '\r' || r == '\n'
}

package extract

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// balancedEnd returns the index just past the bracket that closes the opener at
// start, or -1 when the region never balances. Brackets inside quoted strings
// and comments are ignored.
func balancedEnd(text string, start int) int {
	stack := make([]byte, 0, 8)
	var quote byte

	for i := start; i < len(text); i++ {
		c := text[i]

		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'', '`':
			quote = c
		case '/':
			if i+1 < len(text) && text[i+1] == '/' {
				nl := strings.IndexByte(text[i:], '\n')
				if nl < 0 {
					return -1
				}
				i += nl
			} else if i+1 < len(text) && text[i+1] == '*' {
				end := strings.Index(text[i+2:], "*/")
				if end < 0 {
					return -1
				}
				i += end + 3
			}
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// locate finds the leftmost top-level region that balances and parses.
// A region that balances but does not parse is skipped whole and scanning
// resumes after it; nested openers inside a failed region are never tried.
// An opener that never balances ends the scan, since the rest of the text is
// inside it.
func locate(text string, o *options) (*Object, error) {
	var unparsed *MalformedDataError
	var scanTime, parseTime time.Duration
	sawOpener := false

	defer func() {
		o.observe(StageLocate, scanTime)
		o.observe(StageParse, parseTime)
	}()

	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		sawOpener = true

		start := time.Now()
		end := balancedEnd(text, i)
		scanTime += time.Since(start)
		if end < 0 {
			if unparsed != nil {
				return nil, unparsed
			}
			return nil, &MalformedDataError{
				Pos:    positionAt(text, i),
				Reason: "unbalanced " + strconv.QuoteRune(rune(text[i])),
			}
		}

		start = time.Now()
		v, err := parseRegion(text[i:end])
		parseTime += time.Since(start)
		if err == nil {
			return &Object{Value: v, Source: text[i:end], Offset: i}, nil
		}

		if unparsed == nil {
			unparsed = &MalformedDataError{Pos: positionAt(text, i), Reason: err.Error()}
			var pe *parseError
			if errors.As(err, &pe) {
				unparsed.Pos, unparsed.Reason = positionAt(text, i+pe.offset), pe.reason
			}
		}
		i = end - 1
	}

	if !sawOpener {
		return nil, ErrNoStructuredData
	}
	return nil, unparsed
}

package motor

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNoPosition is wrapped by ParseError when a response carries no signed
// integer token.
var ErrNoPosition = errors.New("no position in response")

// ParseError reports a position response that could not be decoded.
type ParseError struct {
	Response string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse position %q: %v", e.Response, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParsePosition returns the first explicitly signed decimal integer in a
// position response, e.g. "+0001440" or "X-25". Unsigned digits are not a
// position token.
func ParsePosition(response string) (int64, error) {
	for i := 0; i < len(response); i++ {
		c := response[i]
		if c != '+' && c != '-' {
			continue
		}
		j := i + 1
		for j < len(response) && isDigit(response[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		v, err := strconv.ParseInt(response[i:j], 10, 64)
		if err != nil {
			return 0, &ParseError{Response: response, Err: err}
		}
		return v, nil
	}
	return 0, &ParseError{Response: response, Err: ErrNoPosition}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

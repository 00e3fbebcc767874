package tokenizer

import (
	"errors"

	"github.com/pkoukk/tiktoken-go"
)

var errMissingEncoding = errors.New("tokenizer has no encoding")

// encodingCounter counts tokens with one tiktoken encoding.
type encodingCounter struct {
	encoding *tiktoken.Tiktoken
	label    string
}

func (counter encodingCounter) Name() string {
	return counter.label
}

// CountString encodes input with special tokens treated as plain text.
func (counter encodingCounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errMissingEncoding
	}
	return len(counter.encoding.EncodeOrdinary(input)), nil
}

package tokenizer

import (
	"errors"
	"unicode/utf8"

	"github.com/temirov/projmapper/internal/types"
	"github.com/temirov/projmapper/internal/utils"
)

var errNilCounter = errors.New("nil tokenizer counter")

// CountResult captures the outcome of counting a byte slice.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountBytes estimates tokens for data. Binary or invalid UTF-8 data is not counted.
func CountBytes(counter Counter, name string, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errNilCounter
	}
	if utils.ClassifyContent(name, data) == types.ContentBinary || !utf8.Valid(data) {
		return CountResult{}, nil
	}
	tokens, countError := counter.CountString(string(data))
	if countError != nil {
		return CountResult{}, countError
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}

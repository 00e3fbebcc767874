// Package tokenizer estimates token counts for dumped file content.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

const (
	// DefaultModel is used when no model is configured.
	DefaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"

	errorFallbackFormat = "initialize fallback tokenizer: %w"
	errorDefaultFormat  = "initialize default tokenizer: %w"
)

var openAIModelPrefixes = []string{
	"gpt-",
	"text-embedding",
	"davinci",
	"curie",
	"babbage",
	"ada",
	"code-",
}

// NewCounter returns a Counter for model along with the resolved model name.
// Known OpenAI models use their own encoding; anything else uses cl100k_base.
// tiktoken may download encoding tables on first use.
func NewCounter(model string) (Counter, string, error) {
	resolvedModel := strings.TrimSpace(model)
	if resolvedModel == "" {
		resolvedModel = DefaultModel
	}
	lowerModel := strings.ToLower(resolvedModel)

	if isOpenAIModel(lowerModel) {
		encoding, encodingError := tiktoken.EncodingForModel(lowerModel)
		if encodingError == nil && encoding != nil {
			return encodingCounter{encoding: encoding, label: lowerModel}, resolvedModel, nil
		}
		fallback, fallbackError := tiktoken.GetEncoding(defaultEncodingName)
		if fallbackError != nil {
			return nil, "", fmt.Errorf(errorFallbackFormat, fallbackError)
		}
		return encodingCounter{encoding: fallback, label: defaultEncodingName}, defaultEncodingName, nil
	}

	encoding, encodingError := tiktoken.GetEncoding(defaultEncodingName)
	if encodingError != nil {
		return nil, "", fmt.Errorf(errorDefaultFormat, encodingError)
	}
	return encodingCounter{encoding: encoding, label: defaultEncodingName}, defaultEncodingName, nil
}

func isOpenAIModel(model string) bool {
	for _, prefix := range openAIModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

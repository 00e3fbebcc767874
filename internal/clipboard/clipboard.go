// Package clipboard places rendered artifacts on the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable reports a host without a clipboard utility (for example a
// headless Linux session without xclip, xsel or wl-copy).
var ErrUnavailable = errors.New("no clipboard utility available")

const copyErrorFormat = "copy %d bytes to clipboard: %w"

// Copier copies textual data to the system clipboard.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct{}

// NewService constructs a clipboard service.
func NewService() *Service {
	return &Service{}
}

// Copy writes text to the system clipboard.
func (service *Service) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if writeError := clipboard.WriteAll(text); writeError != nil {
		return fmt.Errorf(copyErrorFormat, len(text), writeError)
	}
	return nil
}

var _ Copier = (*Service)(nil)

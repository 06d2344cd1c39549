package output

import (
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/mattn/go-isatty"
	"github.com/moby/sys/atomicwriter"

	"github.com/sambabib/depconfusion/pkg/errdefs"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(message string) (bool, error)
}

// AssumeYes confirms every question without asking.
type AssumeYes struct{}

func (AssumeYes) Confirm(string) (bool, error) { return true, nil }

// askOne and isTerminal are replaced in tests.
var (
	askOne     = survey.AskOne
	isTerminal = func(f *os.File) bool {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
)

// errNoTerminal means there is nobody to answer the prompt.
var errNoTerminal = errors.New("stdin is not a terminal, cannot confirm")

// PromptConfirmer asks on the terminal attached to In.
type PromptConfirmer struct {
	In *os.File
}

// NewPromptConfirmer creates a confirmer reading from stdin.
func NewPromptConfirmer() *PromptConfirmer {
	return &PromptConfirmer{In: os.Stdin}
}

func (p *PromptConfirmer) Confirm(message string) (bool, error) {
	if p.In == nil || !isTerminal(p.In) {
		return false, errNoTerminal
	}
	var ok bool
	if err := askOne(&survey.Confirm{Message: message, Default: false}, &ok); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return false, errdefs.ErrInterrupted
		}
		return false, err
	}
	return ok, nil
}

// WriteReport writes data to path. An existing file is only replaced after
// confirm agrees; a nil confirm never overwrites. The write is atomic, so a
// failed or interrupted write leaves any previous report intact.
func WriteReport(path string, data []byte, confirm Confirmer) error {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		if confirm == nil {
			return fmt.Errorf("%w: %s", errdefs.ErrOutputConflict, path)
		}
		ok, err := confirm.Confirm(fmt.Sprintf("%s already exists. Overwrite?", path))
		if err != nil {
			if errors.Is(err, errdefs.ErrInterrupted) {
				return err
			}
			return fmt.Errorf("%w: %s: %v", errdefs.ErrOutputConflict, path, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s (overwrite declined)", errdefs.ErrOutputConflict, path)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	if err := atomicwriter.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

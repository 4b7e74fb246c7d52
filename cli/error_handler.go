package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/ragsync/errors"
	"github.com/grovetools/ragsync/tui/theme"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out
func NewErrorHandler(verbose bool, out io.Writer) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Hint returns the follow-up advice for an error code, if any.
func Hint(err error) string {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		return "Create ragsync.yml in your project or pass --config."
	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		return "Run 'ragsync config validate' to see what is wrong."
	case errors.ErrCodeConnectFailed, errors.ErrCodeChannelExhausted:
		return "Check that the backend is running and server.base_url is correct."
	case errors.ErrCodeChannelNotOpen:
		return "The progress channel is not connected; try again once it reconnects."
	case errors.ErrCodeRequestFailed:
		return "The backend rejected the request."
	case errors.ErrCodeStreamFailed:
		return "The answer stream was interrupted; ask again."
	case errors.ErrCodeInvalidInput:
		return "Run with --help for usage."
	}
	return ""
}

// Handle prints err with a hint based on its code and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := theme.DefaultTheme

	fmt.Fprintf(h.Out, "%s %s\n", t.Error.Render(theme.IconError+" Error:"), err.Error())
	if hint := Hint(err); hint != "" {
		fmt.Fprintf(h.Out, "%s\n", t.Muted.Render(hint))
	}

	if h.Verbose {
		if coded, ok := err.(*errors.Error); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", coded.ToJSON())
		}
	}
	return err
}

package cmdUtils

import (
	"errors"
	"os"
)

var ErrCommand = errors.New("command error")

// CommandErrorHandler replaces a returned error with the generic
// ErrCommand and exits with a non-zero status, avoiding a second error
// message on top of the one the command itself already printed via its
// logger.
func CommandErrorHandler(err error) error {
	if err != nil {
		os.Exit(1)
		return ErrCommand
	}
	return nil
}

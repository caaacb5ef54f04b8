package cmd

import (
	"os"

	"github.com/smazurov/uvccap/internal/capture"
	"github.com/smazurov/uvccap/internal/logging"
)

// exit is replaced in tests.
var exit = os.Exit

// Exit terminates the process with the code that classifies err. A nil
// error exits with 0.
func Exit(err error) {
	code := capture.ExitCode(err)
	if err != nil {
		logging.GetLogger("main").Error("Command failed", "error", err, "code", code)
	}
	exit(code)
}

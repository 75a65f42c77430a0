package protocol

import (
	"fmt"
	"strings"
)

const (
	// CompletedStatus is printed after a command exits with status 0.
	CompletedStatus = "Command completed."

	// UnknownStatus labels a command whose prompt returned without the
	// completion phrase, so its exit code could not be recovered.
	UnknownStatus = "Command finished with an unknown exit status."

	failedStatusFormat = "Command failed with exit code %d."
	exitVar            = "__ags_ec"
)

// trailer prints the completion phrase with the exit status of the command
// it follows. It runs in the same shell invocation so the phrase and the
// prompt are emitted back to back.
var trailer = fmt.Sprintf(
	`%[1]s=$?; if [ "$%[1]s" -eq 0 ]; then echo '%[2]s'; else echo "Command failed with exit code $%[1]s."; fi`,
	exitVar, CompletedStatus,
)

// FailedStatus returns the status label for a non-zero exit code.
func FailedStatus(code int) string {
	return fmt.Sprintf(failedStatusFormat, code)
}

// Encode returns the line to write to a POSIX shell for command, including
// the completion trailer and the terminating newline.
//
// The command runs through eval in the current shell, so directory changes,
// variables and functions persist. Quoting it keeps a trailing comment, an
// unbalanced quote or a dangling "&" from reaching the trailer.
func Encode(command string) string {
	cmd := strings.TrimRight(command, " \t\r\n")
	if cmd == "" {
		cmd = ":"
	}
	return "eval " + quote(cmd) + "; " + trailer + "\n"
}

// quote wraps s in single quotes for a POSIX shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Bootstrap returns the assignment that replaces the prompt with token,
// written as two quoted halves.
func Bootstrap(variable string, token Token) string {
	a, b := token.Halves()
	return fmt.Sprintf("%s='%s''%s'", variable, a, b)
}

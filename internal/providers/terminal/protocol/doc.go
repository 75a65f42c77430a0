// Package protocol frames commands sent to an interactive shell and recovers
// their output from the raw terminal stream.
//
// A terminal gives no message boundaries, so framing is inferred from text:
// the shell prompt is replaced by a sentinel Token, each command is encoded
// with a trailer that prints a completion phrase carrying the exit code, and
// the Decoder treats the reappearance of the token as the end of the command.
//
// Decoding is incremental and line buffered:
//  1. the first line (the shell's echo of the submitted command) is dropped
//  2. a fresh session's leftover prompt token at the very start is stripped
//  3. complete lines are accumulated until one contains the token
//  4. fragments without a line terminator are carried into the next chunk
//
// The completion phrase on the last line before the prompt is removed from
// the output and becomes the status label and exit code.
package protocol

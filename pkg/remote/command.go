package remote

import (
	"strings"

	"github.com/alessio/shellescape"
)

// Compose renders cmd as a single line for the remote shell. The directory
// change and prefix are chained with && so they only affect this command.
func Compose(cmd Command) string {
	parts := make([]string, 0, 3)
	if cmd.Dir != "" {
		parts = append(parts, "cd "+shellescape.Quote(cmd.Dir))
	}
	if cmd.Prefix != "" {
		parts = append(parts, cmd.Prefix)
	}
	parts = append(parts, cmd.Line)
	line := strings.Join(parts, " && ")

	if cmd.Elevated {
		// -n: never prompt, a password requirement surfaces as a failed command
		line = "sudo -n -H /bin/bash -c " + shellescape.Quote(line)
	}
	return line
}

// FetchLine is the remote command that streams path to stdout.
func FetchLine(path string) string {
	return "cat -- " + shellescape.Quote(path)
}

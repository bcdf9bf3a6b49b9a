package utils

import (
	"fmt"
	"strings"
)

// EscapeAndJoinArgs renders argv the way a shell would echo it back,
// quoting any argument that contains whitespace or quote characters.
// Used by the logger to print the exact subprocess invocation the
// command backend makes.
func EscapeAndJoinArgs(args []string) string {
	var escapedArgs []string

	for _, arg := range args {
		if strings.ContainsAny(arg, " \t\n\"'\\") {
			arg = strings.ReplaceAll(arg, "\\", "\\\\")
			arg = strings.ReplaceAll(arg, "\"", "\\\"")
			escapedArgs = append(escapedArgs, fmt.Sprintf("\"%s\"", arg))
		} else {
			escapedArgs = append(escapedArgs, arg)
		}
	}

	return strings.Join(escapedArgs, " ")
}

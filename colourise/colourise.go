// Package colourise marks up terminal output, so the lines of each service under test
// can be told apart.
package colourise

import (
	"fmt"
	"hash/crc32"
)

// colours are the ansi colour codes that read well against a dark terminal
var colours = []uint8{
	9, 10, 11, 12, 13, 14, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 51, 75, 76, 77, 78, 79, 80, 81,
	82, 83, 84, 85, 86, 87, 112, 113, 114, 115, 116, 117, 118, 119, 120, 121, 122, 123, 148, 149, 150, 151,
	152, 153, 154, 155, 156, 157, 158, 159, 184, 185, 186, 187, 188, 189, 190, 191, 192, 193, 194, 195,
	202, 203, 204, 205, 206, 207, 208, 209, 210, 211, 212, 213, 214, 215, 216, 217, 218, 219, 220, 221,
}

var colourCount = uint32(len(colours)) //nolint:gosec

// ApplyColour returns value wrapped in the escape codes for a colour picked by
// hashing it, so the same string is always the same colour.
func ApplyColour(value string) string {
	i := crc32.Checksum([]byte(value), crc32.IEEETable) % colourCount
	return fmt.Sprintf("\033[1;38;5;%dm%s\033[0m", colours[i], value)
}

// ErrorHighlight returns the passed string adorned with ANSI escape codes to
// render the text as a highlighted error.
func ErrorHighlight(s string) string {
	return fmt.Sprintf("\033[1;37;41m%s\033[0m", s)
}

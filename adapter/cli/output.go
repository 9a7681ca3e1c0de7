package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Rule is the separator printed under listing headers.
var Rule = strings.Repeat("-", 40)

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Header prints a title and the separator.
func Header(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
	fmt.Fprintln(w, Rule)
}

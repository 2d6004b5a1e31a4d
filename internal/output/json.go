package output

import (
	"encoding/json"
	"io"
)

// RenderJSON writes v as indented JSON. SQL suggestions keep their
// comparison operators unescaped.
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

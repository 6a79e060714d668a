package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter writes data as one indented JSON document per call, so
// output can be piped into jq.
type JSONFormatter struct{}

func (*JSONFormatter) Format(w io.Writer, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	FormatSpace = "space"
	FormatLines = "lines"
	FormatJSON  = "json"
)

type orderDocument struct {
	Order   []string `json:"order"`
	Omitted []string `json:"omitted"`
}

// WriteOrder prints the compilation order in format. Omitted files only
// appear in the json format.
func WriteOrder(w io.Writer, format string, order, omitted []string) error {
	switch format {
	case "", FormatSpace:
		_, err := io.WriteString(w, strings.Join(order, " ")+"\n")
		return err
	case FormatLines:
		for _, p := range order {
			if _, err := io.WriteString(w, p+"\n"); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		doc := orderDocument{Order: order, Omitted: omitted}
		if doc.Order == nil {
			doc.Order = []string{}
		}
		if doc.Omitted == nil {
			doc.Omitted = []string{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown order format %q", format)
	}
}

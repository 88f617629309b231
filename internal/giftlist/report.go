package giftlist

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strings"
)

// Line is an item's public fields merged with a quantity.
type Line map[string]any

// Report splits a list into purchased and available buckets. An entry with
// both counts above zero appears in both.
type Report struct {
	User      UserRef `json:"user"`
	Purchased []Line  `json:"purchased"`
	Available []Line  `json:"available"`
}

func newReport(user UserRef) *Report {
	return &Report{User: user, Purchased: []Line{}, Available: []Line{}}
}

// add classifies one entry, skipping zero quantities.
func (r *Report) add(fields map[string]any, available, purchased int) {
	if purchased > 0 {
		r.Purchased = append(r.Purchased, withQuantity(fields, purchased))
	}
	if available > 0 {
		r.Available = append(r.Available, withQuantity(fields, available))
	}
}

func withQuantity(fields map[string]any, quantity int) Line {
	line := make(Line, len(fields)+1)
	maps.Copy(line, fields)
	line["quantity"] = quantity
	return line
}

// WriteText renders the report in its human readable form.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Gift List Report for %s:\n", r.User)
	b.WriteString(strings.Repeat("=", 30) + "\n")
	b.WriteString("Purchased items:\n")
	writeLines(&b, r.Purchased)
	b.WriteString(strings.Repeat("-", 30) + "\n")
	b.WriteString("Available items:\n")
	writeLines(&b, r.Available)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeLines(b *strings.Builder, lines []Line) {
	for _, line := range lines {
		quantity := line["quantity"]
		fields := make(map[string]any, len(line))
		for k, v := range line {
			if k != "quantity" {
				fields[k] = v
			}
		}
		item, err := json.Marshal(fields)
		if err != nil {
			item = []byte(fmt.Sprintf("%v", fields))
		}
		fmt.Fprintf(b, "  - %s (quantity: %v)\n", item, quantity)
	}
}

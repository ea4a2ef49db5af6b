package logger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// messager describes an error that reports its own message without the chain.
type messager interface {
	Message() string
}

// ErrorEntry is one link of an error chain as shown to the user.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// collectErrorEntries walks the chain of err. Links without a message of their
// own only carry metadata, which is attached to the next link that has one.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry
	var pending map[string]any

	for current := err; current != nil; {
		m, ok := current.(messager)
		if !ok {
			entries = append(entries, ErrorEntry{Message: current.Error(), Metadata: pending})
			break
		}

		var md map[string]any
		if z, isZerr := current.(*zerr.Error); isZerr {
			md = z.Metadata()
		}

		if m.Message() == "" {
			if pending == nil {
				pending = make(map[string]any)
			}
			for k, v := range md {
				if _, seen := pending[k]; !seen {
					pending[k] = v
				}
			}
			current = errors.Unwrap(current)
			continue
		}

		if pending != nil {
			if md == nil {
				md = make(map[string]any)
			}
			for k, v := range pending {
				if _, seen := md[k]; !seen {
					md[k] = v
				}
			}
			pending = nil
		}
		entries = append(entries, ErrorEntry{Message: m.Message(), Metadata: md})
		current = errors.Unwrap(current)
	}
	return entries
}

// formatErrorEntries renders entries as an "Error: ... Caused by:" block with
// the metadata of each entry listed below it in key order.
func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string

	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")

		head, indent := "Error: ", "       "
		if i > 0 {
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
			head, indent = "    → ", "      "
		}

		lines = append(lines, head+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, indent+line)
		}
		for _, key := range slices.Sorted(maps.Keys(entry.Metadata)) {
			lines = append(lines, fmt.Sprintf("%s%s: %v", indent, key, entry.Metadata[key]))
		}
	}
	return strings.Join(lines, "\n")
}

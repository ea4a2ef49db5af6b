package app

import (
	"fmt"
	"strconv"
	"strings"

	"go.trai.ch/knit/internal/core/domain"
)

// renderDOT draws the graph with edges from each dependency to its importer,
// so arrows follow initialisation order.
func renderDOT(g *domain.Graph, order []domain.ModuleID) string {
	root := g.Entry().Dir()

	var b strings.Builder
	b.WriteString("digraph knit {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")

	for _, id := range order {
		shape := "box"
		if id.IsRemote() {
			shape = "egg"
		}
		attrs := []string{
			"label=" + strconv.Quote(id.DisplayName(root)),
			"shape=" + shape,
		}
		if id == g.Entry() {
			attrs = append(attrs, "color=red")
		}
		fmt.Fprintf(&b, "  %s [%s];\n", strconv.Quote(id.Key()), strings.Join(attrs, ", "))
	}

	for _, id := range order {
		m, ok := g.Get(id)
		if !ok {
			continue
		}
		for _, dep := range m.Dependencies() {
			fmt.Fprintf(&b, "  %s -> %s;\n", strconv.Quote(dep.Key()), strconv.Quote(id.Key()))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"resqnet-web/pkg/models"
)

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes tab-aligned columns; fill calls row once per line.
func (a *app) table(header []string, fill func(row func(...interface{}))) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	fill(func(cols ...interface{}) {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = fmt.Sprint(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	})
	return tw.Flush()
}

func formatTime(t models.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printCounts(w io.Writer, title string, counts map[string]int64) {
	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range labels {
		fmt.Fprintf(w, "  %-12s %d\n", k, counts[k])
	}
}

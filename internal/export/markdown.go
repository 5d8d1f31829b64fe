// Package export renders the insert history for humans and machines.
package export

import (
	"fmt"
	"strings"
	"time"

	"draftling/internal/types"
)

// Markdown formats the insert history as a markdown document, grouped by
// page host.
func Markdown(items []types.Insertion) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Draftling insert history\n")
	fmt.Fprintf(&b, "> Exported %s\n", time.Now().Format("2006-01-02 15:04"))

	byHost := make(map[string][]types.Insertion)
	var hosts []string
	for _, ins := range items {
		if _, seen := byHost[ins.Host]; !seen {
			hosts = append(hosts, ins.Host)
		}
		byHost[ins.Host] = append(byHost[ins.Host], ins)
	}

	for _, host := range hosts {
		group := byHost[host]
		noun := "insertions"
		if len(group) == 1 {
			noun = "insertion"
		}
		fmt.Fprintf(&b, "\n## %s (%d %s)\n\n", host, len(group), noun)

		for _, ins := range group {
			fmt.Fprintf(&b, "- %s via %s, %s\n", summarize(ins.Text), ins.Delivery, relativeTime(ins.CreatedAt))
		}
	}

	return b.String()
}

// summarize keeps history lines scannable.
func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 80 {
		return text[:80] + "…"
	}
	return text
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"kal/internal/model"
	"kal/internal/reconcile"
)

func (o *RootOptions) jsonOutput() bool {
	return o.Format == "json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, r reconcile.Report) {
	mode := "synced"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "%s: %s, %d fetched, %d upcoming, %d removed by rules, %d deleted, %d inserted (%d foreign kept)\n",
		r.Mirror, mode, r.Fetched, r.Future, r.RemovedByRules, r.Deleted, r.Inserted, r.Foreign)
	if !r.DryRun {
		return
	}
	for _, ev := range r.ToDelete {
		fmt.Fprintf(w, "  - %s\n", describeEvent(ev))
	}
	for _, ev := range r.ToInsert {
		fmt.Fprintf(w, "  + %s\n", describeEvent(ev))
	}
}

func describeEvent(ev model.Event) string {
	return fmt.Sprintf("%s  %s", formatWhen(ev), ev.Title)
}

func formatWhen(ev model.Event) string {
	if ev.AllDay {
		return ev.Start.Format(time.DateOnly)
	}
	return ev.Start.Format("2006-01-02 15:04") + "-" + ev.End.Format("15:04")
}

func printEvents(w io.Writer, events []model.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTITLE\tLOCATION\tCOLOR")
	for _, ev := range events {
		color := ""
		if ev.Color.Valid() {
			color = ev.Color.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatWhen(ev), ev.Title, ev.Location, color)
	}
	return tw.Flush()
}

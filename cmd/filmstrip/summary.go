package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/goldcast/filmstrip-migration"
	"github.com/goldcast/filmstrip-migration/ledger"
)

const timeFormat = "2006-01-02 15:04:05"

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetOutputMirror(w)
	return tw
}

// printSummary renders the status counts of a batch, followed by its failed jobs if there were any.
func printSummary(w io.Writer, report filmstrip.Report) {
	tw := newTable(w)
	tw.SetTitle(fmt.Sprintf("%s %s (%s)", report.Kind, report.RunID, report.Duration().Round(time.Second)))
	tw.AppendHeader(table.Row{"Status", "Jobs"})
	for _, status := range filmstrip.JobStatuses {
		tw.AppendRow(table.Row{status, report.Count(status)})
	}
	tw.AppendFooter(table.Row{"Total", len(report.Outcomes)})
	tw.Render()

	if report.Count(filmstrip.JobFailed) == 0 {
		return
	}
	failures := newTable(w)
	failures.SetTitle("Failed jobs")
	failures.AppendHeader(table.Row{"Entity", "Content", "Source", "Stage", "Error"})
	for _, o := range report.Outcomes {
		if o.Status != filmstrip.JobFailed {
			continue
		}
		source := ""
		if o.Job.Source != nil {
			source = o.Job.Source.String()
		}
		failures.AppendRow(table.Row{o.Job.EntityID, o.Job.ContentID, source, o.Stage, o.Err})
	}
	failures.Render()
}

func printRuns(w io.Writer, runs []ledger.Run) {
	tw := newTable(w)
	header := table.Row{"Run", "Kind", "Started", "Duration"}
	for _, status := range filmstrip.JobStatuses {
		header = append(header, status)
	}
	tw.AppendHeader(header)
	for _, run := range runs {
		row := table.Row{run.ID, run.Kind, run.Started.Local().Format(timeFormat), run.Finished.Sub(run.Started).Round(time.Second)}
		for _, status := range filmstrip.JobStatuses {
			row = append(row, run.Counts[status])
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

func printOutcomes(w io.Writer, runID string, outcomes []ledger.Outcome) {
	tw := newTable(w)
	tw.SetTitle(runID)
	tw.AppendHeader(table.Row{"Entity", "Content", "Source", "Status", "Stage", "Artifacts", "Duration", "Error"})
	for _, o := range outcomes {
		tw.AppendRow(table.Row{o.EntityID, o.ContentID, o.Source, o.Status, o.Stage, o.Artifacts,
			o.Duration.Round(time.Millisecond), o.Error})
	}
	tw.Render()
}

package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/internal/printer"
)

// JobsView shows detailed information about print jobs
type JobsView struct {
	app     *tview.Application
	queue   *printer.PrintQueue
	table   *tview.Table
	details *tview.TextView
	layout  *tview.Flex
	jobs    []*job.Record
}

// NewJobsView creates a new jobs view screen
func NewJobsView(app *tview.Application, queue *printer.PrintQueue) *JobsView {
	j := &JobsView{
		app:   app,
		queue: queue,
	}

	j.setupUI()
	return j
}

func (j *JobsView) setupUI() {
	j.table = tview.NewTable()
	j.table.SetBorder(true)
	j.table.SetTitle("Print Jobs")
	j.table.SetSelectable(true, false)
	j.table.SetFixed(1, 0)
	j.table.SetSelectionChangedFunc(func(row, column int) {
		j.selectJob(row)
	})

	j.details = tview.NewTextView()
	j.details.SetBorder(true)
	j.details.SetTitle("Job Details")
	j.details.SetDynamicColors(true)
	j.details.SetWordWrap(true)

	j.layout = tview.NewFlex().
		AddItem(j.table, 0, 2, true).
		AddItem(j.details, 0, 1, false)

	j.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'r':
				j.Refresh()
				return nil
			case 'c':
				j.clearCompleted()
				return nil
			}
		}
		return event
	})

	j.Refresh()
}

// Refresh reloads the job table from the queue
func (j *JobsView) Refresh() {
	j.table.Clear()

	for col, title := range []string{"ID", "Kind", "State", "Retries", "Age"} {
		j.table.SetCell(0, col, tview.NewTableCell(title).
			SetAlign(tview.AlignCenter).
			SetSelectable(false).
			SetTextColor(tcell.ColorYellow))
	}

	j.jobs = j.queue.GetAllJobs()
	for i, rec := range j.jobs {
		row := i + 1
		j.table.SetCell(row, 0, tview.NewTableCell(job.ShortID(rec.ID)))
		j.table.SetCell(row, 1, tview.NewTableCell(rec.Kind))
		j.table.SetCell(row, 2, tview.NewTableCell(StateIcon(rec.State)+" "+string(rec.State)))
		j.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", rec.Retries)))
		j.table.SetCell(row, 4, tview.NewTableCell(time.Since(rec.CreatedAt).Truncate(time.Second).String()))
	}

	if len(j.jobs) == 0 {
		j.details.SetText("[yellow]No jobs in queue[white]")
		return
	}
	row, _ := j.table.GetSelection()
	j.selectJob(row)
}

func (j *JobsView) selectJob(row int) {
	if row < 1 || row > len(j.jobs) {
		return
	}
	j.details.SetText(JobDetails(j.jobs[row-1]))
}

func (j *JobsView) clearCompleted() {
	j.queue.ClearCompleted()
	j.Refresh()
}

// JobDetails renders one record for the details pane
func JobDetails(rec *job.Record) string {
	var details strings.Builder
	fmt.Fprintf(&details, "[yellow]Job ID:[white] %s\n", rec.ID)
	fmt.Fprintf(&details, "[yellow]Kind:[white] %s\n", rec.Kind)
	fmt.Fprintf(&details, "[yellow]Summary:[white] %s\n", tview.Escape(rec.Summary))
	fmt.Fprintf(&details, "[yellow]State:[white] %s %s\n", StateIcon(rec.State), rec.State)
	fmt.Fprintf(&details, "[yellow]Retries:[white] %d\n", rec.Retries)
	fmt.Fprintf(&details, "[yellow]Created:[white] %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))

	if rec.Error != "" {
		fmt.Fprintf(&details, "\n[red]Error (%s):[white] %s\n", rec.ErrorKind, tview.Escape(rec.Error))
	}

	details.WriteString("\n[yellow]Press 'r' to refresh, 'c' to clear finished jobs[white]")
	return details.String()
}

// StateIcon returns the marker shown next to a job state
func StateIcon(state job.State) string {
	switch state {
	case job.Constructed:
		return "⏳"
	case job.Prepared:
		return "🟡"
	case job.Committed:
		return "✅"
	case job.Failed:
		return "❌"
	default:
		return "⚪"
	}
}

// GetRoot returns the root primitive for this screen
func (j *JobsView) GetRoot() tview.Primitive {
	return j.layout
}

// Package tui is the relay's terminal dashboard
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-relay/internal/command"
	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/internal/printer"
	"github.com/thereceipt/receipt-relay/internal/tui/screens"
)

const maxLogLines = 500

// Options describes what the dashboard shows
type Options struct {
	Listen     string // API address, for the status box
	DevicePath string // configured printer path
	ListPorts  command.PortLister
}

// TViewApp is the dashboard: printer status, the job queue, logs and a
// command line that drives the same executor as the API.
type TViewApp struct {
	App      *tview.Application
	queue    *printer.PrintQueue
	link     *printer.Link
	monitor  *printer.Monitor
	executor *command.Executor
	opts     Options

	flex         *tview.Flex
	printerBox   *tview.TextView
	queueTable   *tview.Table
	statusBox    *tview.TextView
	logsArea     *tview.TextView
	commandInput *tview.InputField

	startTime time.Time

	mu      sync.Mutex
	running bool

	currentScreen string // "main", "devices", "jobs"
	devicesScreen *screens.DevicesView
	jobsScreen    *screens.JobsView
}

// NewTViewApp creates the dashboard. monitor may be nil.
func NewTViewApp(queue *printer.PrintQueue, link *printer.Link, monitor *printer.Monitor, executor *command.Executor, opts Options) *TViewApp {
	if opts.ListPorts == nil {
		opts.ListPorts = printer.ListCandidates
	}

	t := &TViewApp{
		App:           tview.NewApplication(),
		queue:         queue,
		link:          link,
		monitor:       monitor,
		executor:      executor,
		opts:          opts,
		startTime:     time.Now(),
		currentScreen: "main",
	}

	t.setupUI()
	t.devicesScreen = screens.NewDevicesView(t.App, opts.ListPorts, opts.DevicePath)
	t.jobsScreen = screens.NewJobsView(t.App, queue)
	return t
}

func (t *TViewApp) setupUI() {
	t.printerBox = tview.NewTextView()
	t.printerBox.SetBorder(true)
	t.printerBox.SetTitle("Printer")
	t.printerBox.SetDynamicColors(true)

	t.queueTable = tview.NewTable()
	t.queueTable.SetBorder(true)
	t.queueTable.SetTitle("Print Queue")

	t.statusBox = tview.NewTextView()
	t.statusBox.SetBorder(true)
	t.statusBox.SetTitle("Server Status")
	t.statusBox.SetDynamicColors(true)

	t.logsArea = tview.NewTextView()
	t.logsArea.SetBorder(true)
	t.logsArea.SetTitle("Server Logs")
	t.logsArea.SetDynamicColors(true)
	t.logsArea.SetScrollable(true)
	t.logsArea.SetMaxLines(maxLogLines)
	t.logsArea.SetChangedFunc(func() {
		if t.isRunning() {
			t.App.Draw()
		}
	})

	t.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				t.executeCommand(t.commandInput.GetText())
				t.commandInput.SetText("")
			}
		})

	topRow := tview.NewFlex().
		AddItem(t.printerBox, 0, 1, false).
		AddItem(t.queueTable, 0, 2, false).
		AddItem(t.statusBox, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logsArea, 0, 3, false).
		AddItem(t.commandInput, 1, 0, true)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 2, true)

	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.currentScreen != "main" {
			if event.Key() == tcell.KeyEsc {
				t.showMainScreen()
				return nil
			}
			return event
		}

		// typing a command, so shortcuts are off
		if t.commandInput.HasFocus() {
			if event.Key() == tcell.KeyEsc {
				t.App.SetFocus(t.queueTable)
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			t.App.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ':':
				t.App.SetFocus(t.commandInput)
				return nil
			case 'q':
				t.App.Stop()
				return nil
			case 'd':
				t.showScreen("devices")
				return nil
			case 'j':
				t.showScreen("jobs")
				return nil
			}
		}
		return event
	})

	t.App.SetRoot(t.flex, true)
}

// Run shows the dashboard until the user quits or ctx is cancelled
func (t *TViewApp) Run(ctx context.Context) error {
	t.refreshAll()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go t.refreshTicker(ctx)
	go func() {
		<-ctx.Done()
		t.App.Stop()
	}()

	t.setRunning(true)
	defer t.setRunning(false)

	t.AddLog("🖨️  Receipt relay starting...", "info")
	return t.App.Run()
}

func (t *TViewApp) setRunning(v bool) {
	t.mu.Lock()
	t.running = v
	t.mu.Unlock()
}

func (t *TViewApp) isRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *TViewApp) refreshTicker(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.App.QueueUpdateDraw(t.refreshAll)
		}
	}
}

func (t *TViewApp) refreshAll() {
	t.refreshPrinter()
	t.refreshQueue()
	t.refreshStatus()
	switch t.currentScreen {
	case "jobs":
		t.jobsScreen.Refresh()
	}
}

func (t *TViewApp) refreshPrinter() {
	present := true
	if t.monitor != nil {
		present = t.monitor.Available()
	}
	t.printerBox.SetText(printerSummary(t.link.Name(), present, t.link.Stats()))
}

func printerSummary(name string, present bool, stats printer.Stats) string {
	state := "[green]🟢 Connected[white]"
	if !present {
		state = "[red]🔴 Unplugged[white]"
	}

	last := "never"
	if !stats.LastActivity.IsZero() {
		last = time.Since(stats.LastActivity).Truncate(time.Second).String() + " ago"
	}

	return fmt.Sprintf(`%s
%s

Written: %d bytes
Busy: %d  Failures: %d
Last activity: %s`, state, tview.Escape(name), stats.BytesWritten, stats.Busy, stats.Failures, last)
}

func (t *TViewApp) refreshQueue() {
	t.queueTable.Clear()

	for col, title := range []string{"State", "Job", "Retries", "Age"} {
		t.queueTable.SetCell(0, col, tview.NewTableCell(title).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	jobs := t.queue.GetAllJobs()
	counts := countStates(jobs)

	for i, rec := range jobs {
		row := i + 1
		t.queueTable.SetCell(row, 0, tview.NewTableCell(screens.StateIcon(rec.State)+" "+string(rec.State)))
		t.queueTable.SetCell(row, 1, tview.NewTableCell(tview.Escape(rec.Summary)))
		t.queueTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", rec.Retries)))
		t.queueTable.SetCell(row, 3, tview.NewTableCell(time.Since(rec.CreatedAt).Truncate(time.Second).String()))
	}

	if len(jobs) > 0 {
		summary := fmt.Sprintf("[%d] Pending [%d] Committed [%d] Failed",
			counts[job.Constructed]+counts[job.Prepared], counts[job.Committed], counts[job.Failed])
		t.queueTable.SetCell(len(jobs)+1, 0, tview.NewTableCell(tview.Escape(summary)).SetSelectable(false))
	}
}

func countStates(jobs []*job.Record) map[job.State]int {
	counts := make(map[job.State]int)
	for _, rec := range jobs {
		counts[rec.State]++
	}
	return counts
}

func (t *TViewApp) refreshStatus() {
	uptime := time.Since(t.startTime)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	t.statusBox.SetText(fmt.Sprintf(`[green]🟢 Running[white]

Uptime: %dh %dm
API: %s
Jobs: %d total`, hours, minutes, t.opts.Listen, len(t.queue.GetAllJobs())))
}

// executeCommand handles dashboard-only commands and passes the rest to
// the executor
func (t *TViewApp) executeCommand(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}
	t.AddLog(cmd, "command")

	switch strings.ToLower(cmd) {
	case "clear":
		t.logsArea.Clear()
		return
	case "refresh":
		t.refreshAll()
		return
	case "devices":
		t.showScreen("devices")
		return
	case "jobs":
		t.showScreen("jobs")
		return
	case "quit", "exit":
		t.App.Stop()
		return
	}

	for _, line := range formatResult(t.executor.Execute(cmd)) {
		t.AddLog(line.text, line.level)
	}
	t.refreshQueue()
}

type logLine struct {
	text  string
	level string
}

func formatResult(res *command.Result) []logLine {
	if !res.Success {
		return []logLine{{res.Error, "error"}}
	}

	var lines []logLine
	if res.Message != "" {
		lines = append(lines, logLine{res.Message, "info"})
	}
	if id, ok := res.Data["job_id"].(string); ok {
		lines = append(lines, logLine{"job " + id, "info"})
	}
	if jobs, ok := res.Data["jobs"].([]map[string]any); ok {
		for _, j := range jobs {
			lines = append(lines, logLine{fmt.Sprintf("%v  %v  %v", j["id"], j["state"], j["summary"]), "info"})
		}
	}
	if ports, ok := res.Data["ports"].([]printer.Device); ok {
		for _, p := range ports {
			lines = append(lines, logLine{p.Description, "info"})
		}
	}
	return lines
}

func (t *TViewApp) showScreen(name string) {
	t.currentScreen = name

	switch name {
	case "devices":
		t.devicesScreen.Refresh()
		t.App.SetRoot(t.devicesScreen.GetRoot(), true)
		t.App.SetFocus(t.devicesScreen.GetRoot())
	case "jobs":
		t.jobsScreen.Refresh()
		t.App.SetRoot(t.jobsScreen.GetRoot(), true)
		t.App.SetFocus(t.jobsScreen.GetRoot())
	default:
		t.showMainScreen()
	}
}

func (t *TViewApp) showMainScreen() {
	t.currentScreen = "main"
	t.App.SetRoot(t.flex, true)
	t.App.SetFocus(t.commandInput)
}

// AddLog appends a line to the logs panel. Safe for concurrent use.
func (t *TViewApp) AddLog(message string, level string) {
	fmt.Fprint(t.logsArea, formatLog(time.Now(), message, level))
	t.logsArea.ScrollToEnd()
}

func formatLog(now time.Time, message, level string) string {
	var color, icon string
	switch level {
	case "error":
		color, icon = "[red]", "❌"
	case "warning":
		color, icon = "[yellow]", "⚠️"
	case "command":
		color, icon = "[cyan]", ">"
	default:
		color, icon = "[white]", "ℹ️"
	}
	return fmt.Sprintf("%s[%s] %s %s[white]\n", color, now.Format("15:04:05"), icon, tview.Escape(message))
}

// LogWriter returns a writer for console-encoded zap output
func (t *TViewApp) LogWriter() io.Writer {
	return &tviewLogWriter{app: t}
}

type tviewLogWriter struct {
	app *TViewApp
}

func (w *tviewLogWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line == "" {
			continue
		}
		w.app.appendLogLine(line, levelOf(line))
	}
	return len(p), nil
}

// appendLogLine adds an already timestamped zap line
func (t *TViewApp) appendLogLine(line, level string) {
	color := "[white]"
	switch level {
	case "error":
		color = "[red]"
	case "warning":
		color = "[yellow]"
	}
	fmt.Fprintf(t.logsArea, "%s%s[white]\n", color, tview.Escape(line))
	t.logsArea.ScrollToEnd()
}

// levelOf reads the level column of a console-encoded zap line
func levelOf(line string) string {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) < 2 {
		return "info"
	}
	switch fields[1] {
	case "ERROR", "DPANIC", "PANIC", "FATAL":
		return "error"
	case "WARN":
		return "warning"
	default:
		return "info"
	}
}

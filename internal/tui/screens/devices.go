package screens

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/receipt-relay/internal/printer"
)

// DevicesView lists printer candidates on this machine
type DevicesView struct {
	app        *tview.Application
	listPorts  func() ([]printer.Device, error)
	configured string
	list       *tview.List
	details    *tview.TextView
	layout     *tview.Flex
	devices    []printer.Device
}

// NewDevicesView creates a new devices view screen. configured is the
// device path the relay prints to.
func NewDevicesView(app *tview.Application, listPorts func() ([]printer.Device, error), configured string) *DevicesView {
	d := &DevicesView{
		app:        app,
		listPorts:  listPorts,
		configured: configured,
	}

	d.setupUI()
	return d
}

func (d *DevicesView) setupUI() {
	d.list = tview.NewList()
	d.list.SetBorder(true)
	d.list.SetTitle("Printer Candidates")
	d.list.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		d.selectDevice(index)
	})

	d.details = tview.NewTextView()
	d.details.SetBorder(true)
	d.details.SetTitle("Device Details")
	d.details.SetDynamicColors(true)

	d.layout = tview.NewFlex().
		AddItem(d.list, 0, 1, true).
		AddItem(d.details, 0, 2, false)

	d.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && event.Rune() == 'r' {
			d.Refresh()
			return nil
		}
		return event
	})
}

// Refresh lists the ports again
func (d *DevicesView) Refresh() {
	d.list.Clear()
	d.devices = nil

	devices, err := d.listPorts()
	if err != nil {
		d.list.AddItem("Error listing devices", err.Error(), 0, nil)
		d.details.SetText("")
		return
	}
	if len(devices) == 0 {
		d.list.AddItem("No devices detected", "", 0, nil)
		d.details.SetText("[yellow]No printer candidates found[white]")
		return
	}

	d.devices = devices
	for _, dev := range devices {
		marker := "⚪"
		if dev.Path == d.configured {
			marker = "🟢"
		}
		d.list.AddItem(fmt.Sprintf("%s %s", marker, dev.Path), strings.ToUpper(dev.Type), 0, nil)
	}
	d.list.SetCurrentItem(0)
	d.selectDevice(0)
}

func (d *DevicesView) selectDevice(index int) {
	if index < 0 || index >= len(d.devices) {
		return
	}
	dev := d.devices[index]

	var details strings.Builder
	fmt.Fprintf(&details, "[yellow]Path:[white] %s\n", dev.Path)
	fmt.Fprintf(&details, "[yellow]Type:[white] %s\n", strings.ToUpper(dev.Type))
	fmt.Fprintf(&details, "[yellow]Description:[white] %s\n", tview.Escape(dev.Description))
	if dev.Path == d.configured {
		details.WriteString("\n[green]This is the configured printer[white]\n")
	}
	details.WriteString("\n[yellow]Press 'r' to refresh[white]")

	d.details.SetText(details.String())
}

// GetRoot returns the root primitive for this screen
func (d *DevicesView) GetRoot() tview.Primitive {
	return d.layout
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	defaultServerURL = "http://localhost:8080"
)

func main() {
	flags := pflag.NewFlagSet("relayctl", pflag.ContinueOnError)
	flags.Usage = func() {}
	serverURL := flags.StringP("server", "s", envOr("RELAY_SERVER", defaultServerURL), "Server URL")
	token := flags.StringP("token", "t", os.Getenv("RELAY_SERVER_TOKEN"), "API token")
	flags.SetInterspersed(false)

	if err := flags.Parse(os.Args[1:]); err != nil {
		printUsage(flags)
		os.Exit(2)
	}
	if flags.NArg() == 0 {
		printUsage(flags)
		os.Exit(1)
	}

	c := &client{baseURL: strings.TrimSuffix(*serverURL, "/"), token: *token}
	args := flags.Args()

	var result *CommandResult
	switch {
	case args[0] == "print" && len(args) > 1 && args[1] == "--compose":
		doc, err := composeDocument(args[2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error composing document: %v\n", err)
			os.Exit(1)
		}
		result = c.printDocument(doc)
	case isUpload(args):
		result = c.upload(args[0], args[1], args[2:])
	default:
		result = c.command(joinArgs(args))
	}

	if result.Success {
		printSuccess(result)
		os.Exit(0)
	}
	printError(result)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// isUpload reports whether an image or sticker command names a local file,
// which is then uploaded instead of sent as an identifier
func isUpload(args []string) bool {
	if len(args) < 2 || (args[0] != "image" && args[0] != "sticker") {
		return false
	}
	info, err := os.Stat(args[1])
	return err == nil && info.Mode().IsRegular()
}

// joinArgs rebuilds a command line the server's parser splits back into
// the same arguments
func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'\\") {
			a = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(a) + `"`
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Receipt relay CLI

Usage:
  relayctl [flags] <command>

Flags:
%s
Commands:
  text <message>                     Print a line of text
  qr <payload>                       Print a QR code
  barcode <symbology> <payload>      Print a barcode (EAN13, EAN8, UPCA, UPCE, CODE39, CODABAR, ITF)
  image <file-or-id> [caption]       Print an image; local files are uploaded
  sticker <file-or-id>               Print a static sticker
  print <document.json>              Print a document stored on the relay host
  print --compose key:value ...      Compose and print a document
      kind:text text:"Hello"
      kind:barcode symbology:EAN13 payload:5901234123457
      kind:image file_id:upload_... caption:"A cat"
  job list | job status <id> | job clear
  ports                              List printer candidates
  printer                            Show the printer link
  help                               Show help on the server

Examples:
  relayctl text "Hello World"
  relayctl barcode EAN13 5901234123457
  relayctl image ./cat.png "A cat"
  relayctl -s http://relay:8080 -t secret job list
`, flags.FlagUsages())
}

func printSuccess(result *CommandResult) {
	if result.Message != "" {
		fmt.Println(result.Message)
	}

	if jobs, ok := result.Data["jobs"].([]any); ok {
		fmt.Println("\nJobs:")
		for _, j := range jobs {
			if rec, ok := j.(map[string]any); ok {
				fmt.Printf("  %s: %s (%s)\n", rec["id"], rec["state"], rec["summary"])
			}
		}
	}

	if ports, ok := result.Data["ports"].([]any); ok {
		for _, p := range ports {
			if dev, ok := p.(map[string]any); ok {
				fmt.Printf("  %s\t%s\n", dev["path"], dev["description"])
			}
		}
	}

	if state, ok := result.Data["state"].(string); ok {
		fmt.Printf("State: %s\n", state)
		if errMsg, ok := result.Data["error"].(string); ok {
			fmt.Printf("Error: %s (%s)\n", errMsg, result.Data["error_kind"])
		}
	}

	if jobID, ok := result.Data["job_id"].(string); ok {
		fmt.Printf("Job ID: %s\n", jobID)
	}
}

func printError(result *CommandResult) {
	if result.Error != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", result.Error)
	} else if result.Message != "" {
		fmt.Fprintf(os.Stderr, "%s\n", result.Message)
	}
}

// Command printhubctl is the operator CLI for a running printhub
// service. It drives the HTTP API: day reports, reprints, drawer kicks
// and the sales book export, without touching the serial port directly.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	baseURL string
	client  = &http.Client{Timeout: 60 * time.Second}
)

func main() {
	// .env keeps the hub address out of every invocation.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "printhubctl",
		Short:         "Control a running printhub fiscal print service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultURL := os.Getenv("PRINTHUB_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8420"
	}
	root.PersistentFlags().StringVar(&baseURL, "url", defaultURL, "printhub base URL")

	root.AddCommand(
		statusCmd(),
		printCmd(),
		xReportCmd(),
		zReportCmd(),
		zDatesCmd(),
		zNumbersCmd(),
		reprintCmd(),
		noSaleCmd(),
		journalCmd(),
		salesbookCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show printer session and hardware status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodGet, "/api/v1/status", nil)
		},
	}
}

func printCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print <transaction.json>",
		Short: "Print a fiscal document from a transaction file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !json.Valid(data) {
				return fmt.Errorf("%s is not valid JSON", args[0])
			}
			return call(http.MethodPost, "/api/v1/print", data)
		},
	}
}

func xReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "x-report",
		Short: "Print the running day totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodPost, "/api/v1/reports/x", nil)
		},
	}
}

func zReportCmd() *cobra.Command {
	var copyOnly bool
	cmd := &cobra.Command{
		Use:   "z-report",
		Short: "Close the fiscal day (or print a copy of the last closure)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]bool{"close_day": !copyOnly})
			return call(http.MethodPost, "/api/v1/reports/z", body)
		},
	}
	cmd.Flags().BoolVar(&copyOnly, "copy", false, "reprint the last closure instead of closing the day")
	return cmd
}

func zDatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "z-dates <start> <end>",
		Short: "Reprint archived Z closures by date range (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{
				"start_date": args[0],
				"end_date":   args[1],
			})
			return call(http.MethodPost, "/api/v1/reports/z/date-range", body)
		},
	}
}

func zNumbersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "z-numbers <start> <end>",
		Short: "Reprint archived Z closures by closure number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var start, end int
			if _, err := fmt.Sscanf(args[0], "%d", &start); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			if _, err := fmt.Sscanf(args[1], "%d", &end); err != nil {
				return fmt.Errorf("end: %w", err)
			}
			body, _ := json.Marshal(map[string]int{"start": start, "end": end})
			return call(http.MethodPost, "/api/v1/reports/z/number-range", body)
		},
	}
}

func reprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprint <document-number>",
		Short: "Reprint an archived fiscal document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodPost, "/api/v1/documents/"+args[0]+"/reprint", nil)
		},
	}
}

func noSaleCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "no-sale",
		Short: "Open the cash drawer with a non-fiscal document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"reason": reason})
			return call(http.MethodPost, "/api/v1/no-sale", body)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason printed on the slip")
	return cmd
}

func journalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "List journaled fiscal operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(http.MethodGet, "/api/v1/journal", nil)
		},
	}
}

func salesbookCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "salesbook <start> <end>",
		Short: "Export the sales book as XLSX for a date range (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"start_date": args[0],
				"end_date":   args[1],
			}
			if path != "" {
				req["path"] = path
			}
			body, _ := json.Marshal(req)
			return call(http.MethodPost, "/api/v1/salesbook/export", body)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "output file on the service host")
	return cmd
}

// call performs one API request and pretty-prints the answer. Non-2xx
// answers become errors so scripts can rely on the exit code.
func call(method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

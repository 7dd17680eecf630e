// Command loom is the Loom CLI client.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/loomtask/loom/internal/version"
)

const defaultServer = "http://localhost:8080"

func main() {
	serverURL := flag.String("server", envOr("LOOM_SERVER", defaultServer), "loom server URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "stats":
		err = cli.cmdStats(rest)
	case "serve":
		fmt.Fprintln(os.Stderr, "use loomd to run the server")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprint(os.Stderr, `loom — Loom task CLI

Usage:
  loom [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:8080, or $LOOM_SERVER)

Commands:
  version                    print version
  status                     show server status
  stats                      show task statistics
  tasks [status]             list tasks, optionally filtered by status
  task create <title>        create a task
  task show <id>             show one task
  task start <id>            move a task to in-progress
  task complete <id>         move a task to completed
  task delete <id>           delete a task
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("loom %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// do performs a request and decodes the JSON response into v (may be nil).
func (c *Client) do(method, path string, body io.Reader, v any) error {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

func (c *Client) post(path string, body io.Reader, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]string
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("status:  %s\n", result["status"])
	fmt.Printf("version: %s\n", result["version"])
	return nil
}

// --- stats ---

func (c *Client) cmdStats(_ []string) error {
	var stats map[string]any
	if err := c.get("/api/tasks/statistics", &stats); err != nil {
		return err
	}
	fmt.Printf("total:   %s\n", strVal(stats["total_tasks"]))
	fmt.Printf("overdue: %s\n", strVal(stats["overdue_tasks"]))
	if byStatus, ok := stats["tasks_by_status"].(map[string]any); ok {
		fmt.Println("by status:")
		for _, s := range []string{"pending", "in-progress", "completed", "cancelled", "on-hold"} {
			fmt.Printf("  %-12s %s\n", s, strVal(byStatus[s]))
		}
	}
	if avg := stats["average_completion_time_hours"]; avg != nil {
		fmt.Printf("avg completion: %sh\n", strVal(avg))
	}
	return nil
}

// --- tasks ---

func (c *Client) cmdTasks(args []string) error {
	path := "/api/tasks"
	if len(args) > 0 {
		path += "?status=" + url.QueryEscape(args[0])
	}
	var tasks []map[string]any
	if err := c.get(path, &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	fmt.Printf("%-36s %-30s %-12s %-8s\n", "ID", "TITLE", "STATUS", "PRIORITY")
	fmt.Println(strings.Repeat("-", 90))
	for _, t := range tasks {
		fmt.Printf("%-36s %-30s %-12s %-8s\n",
			strVal(t["id"]),
			truncate(strVal(t["title"]), 29),
			strVal(t["status"]),
			strVal(t["priority"]),
		)
	}
	return nil
}

// --- task subcommands ---

func (c *Client) cmdTask(args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: loom task <create|show|start|complete|delete> <arg>")
		os.Exit(1)
	}
	sub := args[0]
	switch sub {
	case "create":
		title := strings.Join(args[1:], " ")
		body := fmt.Sprintf(`{"title":%q}`, title)
		var result map[string]any
		if err := c.post("/api/tasks", strings.NewReader(body), &result); err != nil {
			return err
		}
		fmt.Printf("created task %s\n", strVal(result["id"]))
	case "show":
		var t map[string]any
		if err := c.get("/api/tasks/"+url.PathEscape(args[1]), &t); err != nil {
			return err
		}
		printTask(t)
	case "start":
		return c.setStatus(args[1], "in-progress")
	case "complete":
		return c.setStatus(args[1], "completed")
	case "delete":
		if err := c.do(http.MethodDelete, "/api/tasks/"+url.PathEscape(args[1]), nil, nil); err != nil {
			return err
		}
		fmt.Printf("deleted task %s\n", args[1])
	default:
		return fmt.Errorf("unknown task subcommand: %s", sub)
	}
	return nil
}

func (c *Client) setStatus(id, status string) error {
	body := fmt.Sprintf(`{"status":%q}`, status)
	var t map[string]any
	if err := c.do(http.MethodPatch, "/api/tasks/"+url.PathEscape(id), strings.NewReader(body), &t); err != nil {
		return err
	}
	fmt.Printf("task %s is now %s\n", id, strVal(t["status"]))
	return nil
}

func printTask(t map[string]any) {
	fmt.Printf("id:       %s\n", strVal(t["id"]))
	fmt.Printf("title:    %s\n", strVal(t["title"]))
	fmt.Printf("status:   %s\n", strVal(t["status"]))
	fmt.Printf("priority: %s\n", strVal(t["priority"]))
	if v := t["assigned_to"]; v != nil {
		fmt.Printf("assignee: %s\n", strVal(v))
	}
	if v := t["due_date"]; v != nil {
		fmt.Printf("due:      %s\n", strVal(v))
	}
	fmt.Printf("progress: %s%%\n", strVal(t["progress_percentage"]))
	if v := t["is_ready_to_start"]; v != nil {
		fmt.Printf("ready:    %s\n", strVal(v))
	}
	if deps, ok := t["dependency_ids"].([]any); ok && len(deps) > 0 {
		fmt.Println("dependencies:")
		for _, d := range deps {
			fmt.Printf("  %s\n", strVal(d))
		}
	}
}

// --- helpers ---

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

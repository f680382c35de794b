package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Data-Wise/atlas-sub001/internal/config"
	"github.com/Data-Wise/atlas-sub001/internal/extract"
	"github.com/Data-Wise/atlas-sub001/internal/registry"
	"github.com/Data-Wise/atlas-sub001/internal/triage"
)

// --- capture ---

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Manage quick captures",
}

var captureAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a capture to the inbox",
	Long: `Add a capture to the inbox.

Examples:
  atlas capture add "remember to rotate backup keys" --type task
  atlas capture add --file ./paper.pdf --type note --tags research
  atlas capture add --url https://example.com/article --type note`,
	RunE: func(cmd *cobra.Command, args []string) error {
		capType, _ := cmd.Flags().GetString("type")
		file, _ := cmd.Flags().GetString("file")
		rawURL, _ := cmd.Flags().GetString("url")
		tagsStr, _ := cmd.Flags().GetString("tags")

		content := strings.Join(args, " ")
		if content == "" && file == "" && rawURL == "" {
			return fmt.Errorf("capture text, --file, or --url is required")
		}

		switch {
		case file != "":
			text, err := readCaptureFile(file)
			if err != nil {
				return err
			}
			content = text
		case rawURL != "":
			text, err := fetchCaptureURL(rawURL)
			if err != nil {
				return err
			}
			content = text
		}

		var tags []string
		if tagsStr != "" {
			for _, t := range strings.Split(tagsStr, ",") {
				tags = append(tags, strings.TrimSpace(t))
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"content": content}
		if capType != "" {
			req["type"] = capType
		}
		if tags != nil {
			req["tags"] = tags
		}

		resp, err := client.post("/captures", req)
		if err != nil {
			return err
		}

		var c triage.Capture
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}

		printSuccess("Captured %s %s", c.Type, c.ID)
		return nil
	},
}

// readCaptureFile loads a file as capture content, extracting plain text
// from PDFs.
func readCaptureFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := extract.PDFText(path)
		if err != nil {
			return "", fmt.Errorf("extracting pdf: %w", err)
		}
		return text, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// fetchCaptureURL downloads a page and strips its markup.
func fetchCaptureURL(rawURL string) (string, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	resp, err := httpFetch(rawURL)
	if err != nil {
		return "", fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("url returned status %d", resp.StatusCode)
	}
	text, err := extract.HTMLText(resp.Body)
	if err != nil {
		return "", err
	}
	return text, nil
}

var captureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captures by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/captures?status=" + url.QueryEscape(status))
		if err != nil {
			return err
		}

		var captures []triage.Capture
		if err := decodeJSON(resp, &captures); err != nil {
			return err
		}

		if len(captures) == 0 {
			fmt.Printf("No %s captures.\n", status)
			return nil
		}

		for _, c := range captures {
			line := fmt.Sprintf("%s  %-8s  %s",
				colorize(colorCyan, shortID(c.ID)),
				c.Type,
				truncateLine(c.Content, 70),
			)
			if c.Project != "" {
				line += colorize(colorBold, "  ["+c.Project+"]")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var captureNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the oldest inbox capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/captures/next")
		if err != nil {
			return err
		}
		if resp.StatusCode == 404 {
			resp.Body.Close()
			fmt.Println("Inbox is empty.")
			return nil
		}

		var c triage.Capture
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}

		fmt.Printf("%s %s\n", colorize(colorBold, "Capture:"), c.ID)
		printStatus("Type", "%s", c.Type)
		printStatus("Created", "%s", c.CreatedAt.Format(time.RFC3339))
		if len(c.Tags) > 0 {
			printStatus("Tags", "%s", strings.Join(c.Tags, ", "))
		}
		fmt.Printf("\n%s\n", c.Content)
		return nil
	},
}

var captureAssignCmd = &cobra.Command{
	Use:   "assign <capture-id> <project>",
	Short: "Assign a capture to a project and mark it triaged",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		capType, _ := cmd.Flags().GetString("type")
		tagsStr, _ := cmd.Flags().GetString("tags")

		req := map[string]any{"project": args[1]}
		if capType != "" {
			req["type"] = capType
		}
		if tagsStr != "" {
			var tags []string
			for _, t := range strings.Split(tagsStr, ",") {
				tags = append(tags, strings.TrimSpace(t))
			}
			req["tags"] = tags
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/captures/"+args[0]+"/assign", req)
		if err != nil {
			return err
		}

		var c triage.Capture
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}

		printSuccess("Assigned %s to %s", shortID(c.ID), c.Project)
		return nil
	},
}

var captureArchiveCmd = &cobra.Command{
	Use:   "archive <capture-id>",
	Short: "Archive a capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/captures/"+args[0]+"/archive", map[string]any{})
		if err != nil {
			return err
		}

		var c triage.Capture
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}

		printSuccess("Archived %s", shortID(c.ID))
		return nil
	},
}

var captureConvertCmd = &cobra.Command{
	Use:   "convert <capture-id> <type>",
	Short: "Change a capture's type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/captures/"+args[0]+"/convert", map[string]any{"type": args[1]})
		if err != nil {
			return err
		}

		var c triage.Capture
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}

		printSuccess("Converted %s to %s", shortID(c.ID), c.Type)
		return nil
	},
}

var captureDeleteCmd = &cobra.Command{
	Use:   "delete <capture-id>",
	Short: "Delete a capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete("/captures/" + args[0])
		if err != nil {
			return err
		}

		var result struct {
			Deleted bool `json:"deleted"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Deleted {
			printSuccess("Deleted %s", args[0])
		} else {
			printWarning("No capture with id %s", args[0])
		}
		return nil
	},
}

var captureBatchCmd = &cobra.Command{
	Use:   "batch <action> <capture-id>...",
	Short: "Archive or delete multiple captures",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/captures/batch", map[string]any{
			"action": args[0],
			"ids":    args[1:],
		})
		if err != nil {
			return err
		}

		var result triage.BatchResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Success {
			printSuccess("Processed %d captures", result.Processed)
			return nil
		}
		printWarning("Processed %d, failed %d", result.Processed, result.Failed)
		for _, e := range result.Errors {
			printError("%s: %s", e.ID, e.Error)
		}
		return nil
	},
}

func init() {
	captureAddCmd.Flags().String("type", "", "capture type (idea, task, bug, note, question)")
	captureAddCmd.Flags().String("file", "", "file to capture (PDF text is extracted)")
	captureAddCmd.Flags().String("url", "", "URL to fetch and capture as text")
	captureAddCmd.Flags().String("tags", "", "comma-separated tags")
	captureListCmd.Flags().String("status", "inbox", "capture status (inbox, triaged, archived)")
	captureAssignCmd.Flags().String("type", "", "override capture type while assigning")
	captureAssignCmd.Flags().String("tags", "", "comma-separated tags to add")

	captureCmd.AddCommand(captureAddCmd)
	captureCmd.AddCommand(captureListCmd)
	captureCmd.AddCommand(captureNextCmd)
	captureCmd.AddCommand(captureAssignCmd)
	captureCmd.AddCommand(captureArchiveCmd)
	captureCmd.AddCommand(captureConvertCmd)
	captureCmd.AddCommand(captureDeleteCmd)
	captureCmd.AddCommand(captureBatchCmd)
}

// --- project ---

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage the project registry",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/projects")
		if err != nil {
			return err
		}

		var projects []registry.Project
		if err := decodeJSON(resp, &projects); err != nil {
			return err
		}

		if len(projects) == 0 {
			fmt.Println("No registered projects. Run `atlas project sync` first.")
			return nil
		}

		for _, p := range projects {
			status := p.Metadata.Status
			if status == "" {
				status = "-"
			}
			fmt.Printf("%s  %-10s  %-8s  %s\n",
				colorize(colorCyan, p.ID),
				p.Type,
				status,
				p.Name,
			)
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id-or-path>",
	Short: "Show a project as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/projects/" + url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var p registry.Project
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var projectSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the registry with the configured roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		removeOrphans, _ := cmd.Flags().GetBool("remove-orphans")
		async, _ := cmd.Flags().GetBool("async")
		rootsStr, _ := cmd.Flags().GetString("roots")

		req := map[string]any{
			"dryRun":        dryRun,
			"removeOrphans": removeOrphans,
			"async":         async,
		}
		if rootsStr != "" {
			var roots []string
			for _, r := range strings.Split(rootsStr, ",") {
				roots = append(roots, strings.TrimSpace(r))
			}
			req["rootPaths"] = roots
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/sync", req)
		if err != nil {
			return err
		}

		if async {
			var queued map[string]string
			if err := decodeJSON(resp, &queued); err != nil {
				return err
			}
			printSuccess("Queued sync job %s", queued["id"])
			return nil
		}

		var result registry.SyncResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if dryRun {
			printStep("Dry run — no changes written")
		}
		printStatus("Discovered", "%d", len(result.Discovered))
		printStatus("Updated", "%d", len(result.Updated))
		printStatus("Unchanged", "%d", len(result.Unchanged))
		printStatus("Orphaned", "%d", len(result.Orphaned))
		printStatus("Status files", "%d of %d", result.Stats.WithStatusFile, result.Stats.Total)

		for _, p := range result.Discovered {
			printSuccess("new: %s (%s)", p.Name, p.Type)
		}
		for _, p := range result.Orphaned {
			printWarning("orphan: %s (%s)", p.Name, p.Path)
		}
		for _, e := range result.Errors {
			printError("%s: %s", e.Path, e.Error)
		}
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a project from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete("/projects/" + url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed project %s", args[0])
		return nil
	},
}

func init() {
	projectSyncCmd.Flags().Bool("dry-run", false, "preview changes without writing")
	projectSyncCmd.Flags().Bool("remove-orphans", false, "delete registry entries whose directory vanished")
	projectSyncCmd.Flags().Bool("async", false, "queue the sync as a background job")
	projectSyncCmd.Flags().String("roots", "", "comma-separated root paths (default: configured roots)")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectSyncCmd)
	projectCmd.AddCommand(projectRmCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, kv := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, kv.Key), kv.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- helpers ---

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

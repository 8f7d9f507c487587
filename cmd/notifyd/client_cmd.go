package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/notifyd/internal/api"
	"github.com/mattjoyce/notifyd/internal/inspect"
	"github.com/mattjoyce/notifyd/internal/plugin"
	"github.com/mattjoyce/notifyd/internal/queue"
	"github.com/mattjoyce/notifyd/internal/storage"
	"github.com/mattjoyce/notifyd/internal/tui/watch"
)

// apiOptions locate a running notifyd. Unset values come from the config.
type apiOptions struct {
	url string
	key string
}

func (a *apiOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.url, "api-url", "", "Base URL of the notifyd API (default from api.listen)")
	cmd.Flags().StringVar(&a.key, "api-key", "", "API key (default from api.api_key)")
}

func (a *apiOptions) resolve(opts *rootOptions, stderr io.Writer) (string, string, error) {
	url, key := a.url, a.key
	if url == "" || key == "" {
		cfg, err := opts.loadConfig(stderr)
		if err != nil {
			return "", "", err
		}
		if url == "" {
			url = "http://" + cfg.API.Listen
		}
		if key == "" {
			key = cfg.API.APIKey
		}
	}
	return strings.TrimRight(url, "/"), key, nil
}

func newPluginCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Inspect notification plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List plugins found in plugins_dir and what they subscribe to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			registry, err := plugin.Discover(cfg.PluginsDir, nil)
			if err != nil {
				return fmt.Errorf("plugin discovery: %w", err)
			}
			return writePluginList(cmd.OutOrStdout(), registry.All(), jsonOut)
		},
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.AddCommand(list)
	return cmd
}

func writePluginList(w io.Writer, plugins []*plugin.Plugin, jsonOut bool) error {
	if jsonOut {
		resp := api.PluginListResponse{Plugins: make([]api.PluginSummary, 0, len(plugins))}
		for _, p := range plugins {
			resp.Plugins = append(resp.Plugins, api.PluginSummary{
				ID:            p.ID,
				Version:       p.Version,
				Description:   p.Description,
				Notifications: p.Notifications.Names(),
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(plugins) == 0 {
		fmt.Fprintln(w, "no plugins found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tNOTIFICATIONS")
	for _, p := range plugins {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Version, strings.Join(p.Notifications.Names(), ","))
	}
	return tw.Flush()
}

func newNotifyCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Post a status change to a running notifyd",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newNotifyKindCommand(opts, "agent", "Post an agent status change (JSON agent object)"))
	cmd.AddCommand(newNotifyKindCommand(opts, "stage", "Post a stage status change (JSON stage object)"))
	return cmd
}

func newNotifyKindCommand(opts *rootOptions, kind, short string) *cobra.Command {
	var (
		file    string
		apiOpts apiOptions
	)

	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readEventFile(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			url, key, err := apiOpts.resolve(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return postNotification(commandContext(cmd), http.DefaultClient, url+"/notify/"+kind, key, body, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file to post, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
	apiOpts.bind(cmd)
	return cmd
}

func readEventFile(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	return data, nil
}

func postNotification(ctx context.Context, client *http.Client, url, key string, body []byte, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		var e api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var r api.NotifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(r.Plugins) == 0 {
		fmt.Fprintf(out, "%s: no subscribed plugins\n", r.Kind)
		return nil
	}
	fmt.Fprintf(out, "%s posted to %s\n", r.Kind, strings.Join(r.Plugins, ", "))
	return nil
}

func newOutboxCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the persistent delivery outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var jsonOut bool
	inspectCmd := &cobra.Command{
		Use:   "inspect <message-id>",
		Short: "Show a queued message and its delivery attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			q, closeDB, err := openQueue(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeDB()

			var report string
			if jsonOut {
				report, err = inspect.BuildJSONReport(ctx, q, args[0])
			} else {
				report, err = inspect.BuildReport(ctx, q, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
	inspectCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	var limit int
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "List the most recent delivery attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			q, closeDB, err := openQueue(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeDB()

			entries, err := q.Log(ctx, limit)
			if err != nil {
				return err
			}
			return writeDeliveryLog(cmd.OutOrStdout(), entries)
		},
	}
	logCmd.Flags().IntVar(&limit, "limit", 50, "Number of attempts to show")

	cmd.AddCommand(inspectCmd, logCmd)
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func openQueue(ctx context.Context, opts *rootOptions, stderr io.Writer) (*queue.Queue, func(), error) {
	cfg, err := opts.loadConfig(stderr)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return queue.New(db), func() { _ = db.Close() }, nil
}

func writeDeliveryLog(w io.Writer, entries []queue.LogEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No delivery attempts logged.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPLETED\tMESSAGE\tPLUGIN\tKIND\tATTEMPT\tSTATUS\tERROR")
	for _, e := range entries {
		lastErr := ""
		if e.LastError != nil {
			lastErr = *e.LastError
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			e.CompletedAt.Format(time.RFC3339), e.JobID, e.Plugin, e.RequestName, e.Attempt, e.Status, lastErr)
	}
	return tw.Flush()
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var apiOpts apiOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of notifications and deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, key, err := apiOpts.resolve(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			p := tea.NewProgram(watch.New(ctx, url, key), tea.WithAltScreen())
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
	apiOpts.bind(cmd)
	return cmd
}

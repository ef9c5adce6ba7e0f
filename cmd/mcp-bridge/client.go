package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentsmithers/go-mcp-bridge"
)

const (
	flagURL     = "url"
	flagArgs    = "args"
	flagTimeout = "timeout"
)

var clientInfo = mcp.Info{Name: "mcp-bridge-cli", Version: "1.0.0"}

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagURL, "http://127.0.0.1:3003", "Base URL of the bridge, including its path prefix")
	cmd.Flags().Duration(flagTimeout, 30*time.Second, "Time allowed for connecting and for the request")
}

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tools",
		Short:        "List the tools of a running bridge",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, cli *mcp.Client) error {
				tools, err := cli.ListTools(ctx)
				if err != nil {
					return err
				}
				printTools(cmd.OutOrStdout(), tools)
				return nil
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}

func callCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "call TOOL",
		Short:        "Call a tool of a running bridge and print its text result",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString(flagArgs)
			toolArgs, err := parseToolArgs(raw)
			if err != nil {
				return err
			}

			return withClient(cmd, func(ctx context.Context, cli *mcp.Client) error {
				res, err := cli.CallTool(ctx, args[0], toolArgs)
				if err != nil {
					return err
				}
				for _, c := range res.Content {
					fmt.Fprintln(cmd.OutOrStdout(), c.Text)
				}
				if res.IsError {
					return errors.New("tool reported an error")
				}
				return nil
			})
		},
	}
	addClientFlags(cmd)
	cmd.Flags().String(flagArgs, "{}", "Tool arguments as a JSON object")
	return cmd
}

func withClient(cmd *cobra.Command, fn func(context.Context, *mcp.Client) error) error {
	baseURL, _ := cmd.Flags().GetString(flagURL)
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cli := mcp.NewClient(baseURL, clientInfo)
	if err := cli.Connect(ctx); err != nil {
		return err
	}
	defer cli.Close()
	return fn(ctx, cli)
}

func parseToolArgs(raw string) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid --%s, expected a JSON object: %w", flagArgs, err)
	}
	return args, nil
}

func printTools(w io.Writer, tools []mcp.Tool) {
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
		for _, name := range t.InputSchema.Required {
			p := t.InputSchema.Properties[name]
			fmt.Fprintf(w, "  %s (%s, required)\n", name, p.Type)
		}
		for _, name := range slices.Sorted(maps.Keys(t.InputSchema.Properties)) {
			if slices.Contains(t.InputSchema.Required, name) {
				continue
			}
			p := t.InputSchema.Properties[name]
			fmt.Fprintf(w, "  %s (%s, default %v)\n", name, p.Type, p.Default)
		}
	}
}

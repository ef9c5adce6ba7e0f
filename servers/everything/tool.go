package everything

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentsmithers/go-mcp-bridge"
)

// Commands implements mcp.CommandSource interface.
func (s *Server) Commands() []mcp.Command {
	return []mcp.Command{
		{
			Name:        "Echo",
			Description: "Echoes back the input",
			Params: []mcp.Param{
				{Name: "message", Description: "Message to echo", Type: mcp.Scalar(mcp.KindString)},
			},
			Handler: s.callEcho,
		},
		{
			Name:        "Add",
			Description: "Adds two numbers",
			Params: []mcp.Param{
				{Name: "a", Description: "First number", Type: mcp.Scalar(mcp.KindFloat64)},
				{Name: "b", Description: "Second number", Type: mcp.Scalar(mcp.KindFloat64)},
			},
			Handler: s.callAdd,
		},
		{
			Name:        "LongRunningOperation",
			Description: "Demonstrates a long running operation that reports its progress to the server log",
			Params: []mcp.Param{
				{
					Name: "duration", Description: "Duration of the operation in seconds",
					Type: mcp.Scalar(mcp.KindFloat64), Optional: true, Default: 10.0,
				},
				{
					Name: "steps", Description: "Number of steps in the operation",
					Type: mcp.Scalar(mcp.KindInt32), Optional: true, Default: int32(5),
				},
			},
			Handler: s.callLongRunningOperation,
		},
		{
			Name:        "PrintEnv",
			Description: "Prints all environment variables, helpful for debugging server configuration",
			Handler:     s.callPrintEnv,
		},
		{
			Name:        "Help",
			Description: "Lists every available command with its parameters",
			Params: []mcp.Param{
				{
					Name: "filter", Description: "Glob matched case-insensitively against command names, e.g. \"*string*\"",
					Type: mcp.Scalar(mcp.KindString), Optional: true, Default: "*",
				},
			},
			Handler: s.callHelp,
		},
		{
			Name:        "JoinStrings",
			Description: "Joins a list of strings with a separator",
			Params: []mcp.Param{
				{Name: "values", Description: "Strings to join", Type: mcp.ArrayOf(mcp.KindString)},
				{
					Name: "separator", Description: "Separator placed between values",
					Type: mcp.Scalar(mcp.KindString), Optional: true, Default: ", ",
				},
			},
			Handler: s.callJoinStrings,
		},
		{
			Name:        "DiffText",
			Description: "Computes a patch that turns the original text into the modified text",
			Params: []mcp.Param{
				{Name: "original", Description: "Original text", Type: mcp.Scalar(mcp.KindString)},
				{Name: "modified", Description: "Modified text", Type: mcp.Scalar(mcp.KindString)},
			},
			Handler: s.callDiffText,
		},
		{
			Name:        "FormatGuid",
			Description: "Formats a GUID in the requested style",
			Params: []mcp.Param{
				{Name: "id", Description: "GUID to format", Type: mcp.Scalar(mcp.KindUUID)},
				{
					Name: "style", Description: "Output style",
					Type: mcp.EnumOf("Canonical", "Urn", "Braces", "Compact"), Optional: true, Default: "Canonical",
				},
			},
			Handler: s.callFormatGUID,
		},
	}
}

func (s *Server) callEcho(_ context.Context, args mcp.Args) (any, error) {
	return args.String("message"), nil
}

func (s *Server) callAdd(_ context.Context, args mcp.Args) (any, error) {
	a, b := args.Float64("a"), args.Float64("b")
	return fmt.Sprintf("The sum of %g and %g is %g", a, b, a+b), nil
}

func (s *Server) callLongRunningOperation(ctx context.Context, args mcp.Args) (any, error) {
	duration := args.Float64("duration")
	steps := mcp.Arg[int32](args, "steps")
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	if duration < 0 {
		return nil, fmt.Errorf("duration must not be negative, got %g", duration)
	}

	stepDuration := time.Duration(duration / float64(steps) * float64(time.Second))
	timer := time.NewTimer(stepDuration)
	defer timer.Stop()

	for i := int32(0); i < steps; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("operation cancelled after %d of %d steps: %w", i, steps, ctx.Err())
		case <-timer.C:
		}
		timer.Reset(stepDuration)

		s.logger.Debug("long running operation progress",
			slog.Int("progress", int(i+1)), slog.Int("total", int(steps)))
	}

	return fmt.Sprintf("Long running operation completed. Duration: %g seconds, Steps: %d", duration, steps), nil
}

func (s *Server) callPrintEnv(context.Context, mcp.Args) (any, error) {
	env := slices.Clone(s.environ())
	slices.Sort(env)
	return fmt.Sprintf("Environment variables:\n%s", strings.Join(env, "\n")), nil
}

func (s *Server) callHelp(_ context.Context, args mcp.Args) (any, error) {
	if s.registry == nil {
		return "No commands registered.", nil
	}

	filter := args.String("filter")
	if filter == "" {
		filter = "*"
	}
	g, err := glob.Compile(strings.ToLower(filter))
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
	}

	var sb strings.Builder
	sb.WriteString("Available commands:")
	for _, c := range s.registry.List() {
		if !g.Match(strings.ToLower(c.Name)) {
			continue
		}
		params := make([]string, len(c.Params))
		for i, p := range c.Params {
			params[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
			if p.Optional {
				params[i] += "?"
			}
		}
		fmt.Fprintf(&sb, "\n- %s(%s)", c.Name, strings.Join(params, ", "))
		if c.Description != "" {
			fmt.Fprintf(&sb, ": %s", c.Description)
		}
	}
	return sb.String(), nil
}

func (s *Server) callDiffText(_ context.Context, args mcp.Args) (any, error) {
	original, modified := args.String("original"), args.String("modified")

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, modified, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	if len(diffs) == 0 || (len(diffs) == 1 && diffs[0].Type == diffmatchpatch.DiffEqual) {
		return "No changes.", nil
	}
	return dmp.PatchToText(dmp.PatchMake(original, diffs)), nil
}

func (s *Server) callJoinStrings(_ context.Context, args mcp.Args) (any, error) {
	return strings.Join(args.Strings("values"), args.String("separator")), nil
}

func (s *Server) callFormatGUID(_ context.Context, args mcp.Args) (any, error) {
	id := args.UUID("id")
	switch args.String("style") {
	case "Urn":
		return id.URN(), nil
	case "Braces":
		return "{" + id.String() + "}", nil
	case "Compact":
		return strings.ReplaceAll(id.String(), "-", ""), nil
	default:
		return id.String(), nil
	}
}

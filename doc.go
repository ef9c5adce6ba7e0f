// Package mcp exposes named, introspectable commands to Model Context Protocol (MCP)
// clients over JSON-RPC 2.0. It follows the 2024-11-05 revision of the protocol from
// https://spec.modelcontextprotocol.io/specification/ and its HTTP with SSE transport.
//
// A client opens a long-lived event stream with GET <prefix>/sse. The server answers with
// an "endpoint" event naming <prefix>/message?sessionId=<id>. The client then POSTs
// JSON-RPC messages to that endpoint; each POST is acknowledged with 202 Accepted and the
// response, if any, is delivered as a data frame on the event stream.
//
// Commands are registered explicitly in a Registry together with their declared
// parameters. Incoming tools/call arguments are coerced into the declared types before
// the command's Handler runs:
//
//	reg := mcp.NewRegistry()
//	reg.MustRegister(mcp.Command{
//		Name:        "Add",
//		Description: "Adds two numbers",
//		Params: []mcp.Param{
//			{Name: "a", Type: mcp.Scalar(mcp.KindInt64)},
//			{Name: "b", Type: mcp.Scalar(mcp.KindInt64)},
//		},
//		Handler: func(_ context.Context, args mcp.Args) (any, error) {
//			return args.Int64("a") + args.Int64("b"), nil
//		},
//	})
//
//	srv := mcp.NewServer(mcp.Info{Name: "example", Version: "1.0.0"}, reg)
//	err := srv.ListenAndServe(ctx, "127.0.0.1:3003")
//
// Prompt templates (PromptSet) and static resource descriptors (ResourceCatalog) are
// served alongside the tools.
//
// Server.ServeStdio serves the same dispatcher over newline-delimited stdin/stdout for
// clients that spawn the server as a child process. Client talks to a running server
// over the SSE transport.
package mcp

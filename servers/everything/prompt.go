package everything

import "github.com/agentsmithers/go-mcp-bridge"

var promptList = []mcp.PromptTemplate{
	{
		Name:        "dnSpyEx Prompt",
		Description: "Prompt used as a default to ask the AI to use the dnSpyEx functionality",
		Messages: []mcp.MessageTemplate{
			{
				Role: mcp.RoleUser,
				Text: "You are an AI assistant with access to an MCP (Model Context Protocol) server. " +
					"Your goal is to complete tasks by calling the available commands on this server " +
					"which is connected to dnSpyEx designed for decompiling .NET applications.",
			},
		},
	},
	{
		Name:        "Query-a-client-name",
		Description: "You are a helpful AI that will query for a client's name using the MCP calls",
		Arguments: []mcp.PromptArgument{
			{Name: "text", Description: "Client name search term", Required: true},
			{Name: "maxLength", Description: "Maximum client's name length"},
		},
		Messages: []mcp.MessageTemplate{
			{Role: mcp.RoleUser, Text: `Query the client database for names containing: "{text}"{maxLengthPlaceholder}.`},
		},
		Suffixes: []mcp.OptionalSuffix{
			{Placeholder: "{maxLengthPlaceholder}", Argument: "maxLength", Format: " (max length: %s)"},
		},
	},
	{
		Name:        "Debug-Error-Workflow",
		Description: "Guides the user through debugging a reported error.",
		Arguments: []mcp.PromptArgument{
			{Name: "errorMessage", Description: "The initial error message reported by the user", Required: true},
		},
		Messages: []mcp.MessageTemplate{
			{Role: mcp.RoleUser, Text: `I'm encountering an error: "{errorMessage}"`},
			{
				Role: mcp.RoleAssistant,
				Text: "Okay, I see the error message. To help diagnose this, could you tell me what steps " +
					"you took leading up to this error, and what you've already tried to resolve it?",
			},
			{
				Role: mcp.RoleUser,
				Text: "I was trying to process the monthly report. I've already tried restarting the " +
					"application server, but the error persists.",
			},
			{
				Role: mcp.RoleAssistant,
				Text: "Got it. Restarting didn't help. Could you please check the latest application logs " +
					"(e.g., `/var/log/app/error.log`) for any specific entries around the time the error " +
					"occurred? Any stack traces or related warnings would be helpful.",
			},
		},
	},
}

// Prompts returns the demonstration prompt templates.
func (s *Server) Prompts() *mcp.PromptSet {
	return mcp.NewPromptSet(promptList...)
}

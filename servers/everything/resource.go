package everything

import (
	"fmt"

	"github.com/agentsmithers/go-mcp-bridge"
)

var resourceList = []mcp.Resource{
	{
		URI:         "/files/config.json",
		Name:        "Configuration File",
		Description: "Server-side configuration in JSON format",
		MimeType:    "application/json",
	},
	{
		URI:         "/images/logo.png",
		Name:        "Logo Image",
		Description: "Company logo",
		MimeType:    "image/png",
	},
}

var resourceTemplateList = []mcp.ResourceTemplate{
	{
		URITemplate: "/logs/{date}",
		Name:        "Log File by Date",
		Description: "Retrieve logs for a specific date (YYYY-MM-DD)",
		MimeType:    "text/plain",
	},
}

// Resources returns the demonstration resource catalog.
func (s *Server) Resources() (*mcp.ResourceCatalog, error) {
	cat := mcp.NewResourceCatalog()
	for _, r := range resourceList {
		if err := cat.AddResource(r); err != nil {
			return nil, fmt.Errorf("failed to add resource: %w", err)
		}
	}
	for _, t := range resourceTemplateList {
		if err := cat.AddTemplate(t); err != nil {
			return nil, fmt.Errorf("failed to add resource template: %w", err)
		}
	}
	return cat, nil
}

package mcp

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yosida95/uritemplate/v3"
)

// ResourceCatalog holds the static resource and resource template descriptors advertised
// by resources/list and resources/templates/list. It is safe for concurrent use.
type ResourceCatalog struct {
	mu        sync.RWMutex
	resources []Resource
	templates []ResourceTemplate
}

// NewResourceCatalog creates an empty catalog.
func NewResourceCatalog() *ResourceCatalog {
	return &ResourceCatalog{}
}

// AddResource adds a resource, replacing any existing one with the same URI.
func (c *ResourceCatalog) AddResource(res Resource) error {
	if strings.TrimSpace(res.URI) == "" {
		return errors.New("resource uri is empty")
	}
	if res.Name == "" {
		return fmt.Errorf("resource %q has no name", res.URI)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range c.resources {
		if r.URI == res.URI {
			c.resources[i] = res
			return nil
		}
	}
	c.resources = append(c.resources, res)
	return nil
}

// AddTemplate adds a resource template after checking its pattern is a valid RFC 6570
// URI template with at least one variable.
func (c *ResourceCatalog) AddTemplate(tmpl ResourceTemplate) error {
	parsed, err := uritemplate.New(tmpl.URITemplate)
	if err != nil {
		return fmt.Errorf("invalid URI template pattern '%s': %w", tmpl.URITemplate, err)
	}
	if len(parsed.Varnames()) == 0 {
		return fmt.Errorf("URI template pattern '%s' has no variables", tmpl.URITemplate)
	}
	if tmpl.Name == "" {
		return fmt.Errorf("resource template %q has no name", tmpl.URITemplate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.templates {
		if t.URITemplate == tmpl.URITemplate {
			c.templates[i] = tmpl
			return nil
		}
	}
	c.templates = append(c.templates, tmpl)
	return nil
}

// Resources returns a snapshot of the resources in insertion order.
func (c *ResourceCatalog) Resources() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// Templates returns a snapshot of the resource templates in insertion order.
func (c *ResourceCatalog) Templates() []ResourceTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ResourceTemplate, len(c.templates))
	copy(out, c.templates)
	return out
}

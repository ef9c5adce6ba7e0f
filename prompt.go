package mcp

import (
	"fmt"
	"strings"
	"sync"
)

// PromptTemplate is a named, parameterized sequence of messages.
type PromptTemplate struct {
	Name        string
	Description string
	Arguments   []PromptArgument
	Messages    []MessageTemplate
	// Suffixes render an optional fragment only when their argument is supplied.
	Suffixes []OptionalSuffix
}

// MessageTemplate is one message of a PromptTemplate. Text may contain {argument}
// placeholders.
type MessageTemplate struct {
	Role        Role
	ContentType ContentType
	Text        string
}

// OptionalSuffix replaces Placeholder (written with braces, e.g. "{maxLengthPlaceholder}")
// with fmt.Sprintf(Format, value) when Argument is supplied, and with "" otherwise.
type OptionalSuffix struct {
	Placeholder string
	Argument    string
	Format      string
}

// PromptSet holds the prompt templates of a server. Lookups are case-insensitive. It is
// safe for concurrent use.
type PromptSet struct {
	mu        sync.RWMutex
	templates []PromptTemplate
}

// NewPromptSet creates a prompt set holding the given templates.
func NewPromptSet(templates ...PromptTemplate) *PromptSet {
	s := &PromptSet{}
	for _, t := range templates {
		s.Add(t)
	}
	return s
}

// Add adds a template, replacing any existing one with the same case-insensitive name.
func (s *PromptSet) Add(t PromptTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.templates {
		if strings.EqualFold(existing.Name, t.Name) {
			s.templates[i] = t
			return
		}
	}
	s.templates = append(s.templates, t)
}

// Lookup finds a template by case-insensitive name.
func (s *PromptSet) Lookup(name string) (PromptTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.templates {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return PromptTemplate{}, false
}

// List returns the listed form of every template, in insertion order.
func (s *PromptSet) List() []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompts := make([]Prompt, len(s.templates))
	for i, t := range s.templates {
		prompts[i] = t.Prompt()
	}
	return prompts
}

// Prompt returns the listed form of the template.
func (t PromptTemplate) Prompt() Prompt {
	return Prompt{
		Name:        t.Name,
		Description: t.Description,
		Arguments:   t.Arguments,
	}
}

// Validate checks that every required argument is present and non-null.
func (t PromptTemplate) Validate(args map[string]any) error {
	for _, a := range t.Arguments {
		if !a.Required {
			continue
		}
		if v, ok := args[a.Name]; !ok || v == nil {
			return &ArgumentError{
				Param: a.Name,
				Msg:   fmt.Sprintf("missing required argument '%s' for prompt '%s'", a.Name, t.Name),
			}
		}
	}
	return nil
}

// Render validates args and substitutes them into the message templates.
//
// Every declared argument's {name} placeholder is replaced with its value, or with ""
// when the argument is absent. Optional suffix placeholders are expanded afterwards.
// Placeholders that name no declared argument are left verbatim.
func (t PromptTemplate) Render(args map[string]any) (GetPromptResult, error) {
	if err := t.Validate(args); err != nil {
		return GetPromptResult{}, err
	}

	pairs := make([]string, 0, 2*(len(t.Arguments)+len(t.Suffixes)))
	for _, a := range t.Arguments {
		pairs = append(pairs, "{"+a.Name+"}", formatValue(args[a.Name]))
	}
	for _, s := range t.Suffixes {
		var text string
		if v, ok := args[s.Argument]; ok && v != nil {
			text = fmt.Sprintf(s.Format, formatValue(v))
		}
		pairs = append(pairs, s.Placeholder, text)
	}
	replacer := strings.NewReplacer(pairs...)

	messages := make([]PromptMessage, len(t.Messages))
	for i, m := range t.Messages {
		ct := m.ContentType
		if ct == "" {
			ct = ContentTypeText
		}
		messages[i] = PromptMessage{
			Role: m.Role,
			Content: Content{
				Type: ct,
				Text: replacer.Replace(m.Text),
			},
		}
	}

	return GetPromptResult{
		Description: t.Description,
		Messages:    messages,
	}, nil
}

package loader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leaprun/pkg/core"
	"gopkg.in/yaml.v3"
)

// Frontmatter is the parsed /*--- ... ---*/ header of a SQL model.
type Frontmatter struct {
	// DependsOn lists dependencies in addition to literal ref() calls
	DependsOn []string
	// Description is free text kept for listings
	Description string
	// Config holds the materialization keys
	Config core.ModelConfig
}

// frontmatterPattern matches a /*--- ... ---*/ block at the top of a file.
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

// ExtractFrontmatter splits SQL content into its frontmatter and body.
// Content without frontmatter is returned unchanged with a nil header.
func ExtractFrontmatter(content string) (*Frontmatter, string, error) {
	loc := frontmatterPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return nil, content, nil
	}
	body := strings.TrimLeft(content[loc[1]:], "\r\n")

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(content[loc[2]:loc[3]]), &raw); err != nil {
		return nil, "", &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	fm := &Frontmatter{}
	if v, ok := raw["depends_on"]; ok {
		deps, err := stringList(v)
		if err != nil {
			return nil, "", &FrontmatterParseError{Message: "depends_on: " + err.Error()}
		}
		fm.DependsOn = deps
		delete(raw, "depends_on")
	}
	if v, ok := raw["description"]; ok {
		s, isString := v.(string)
		if !isString {
			return nil, "", &FrontmatterParseError{Message: "description must be a string"}
		}
		fm.Description = s
		delete(raw, "description")
	}

	cfg, err := core.DecodeModelConfig(raw)
	if err != nil {
		return nil, "", &FrontmatterParseError{Message: err.Error()}
	}
	fm.Config = cfg
	return fm, body, nil
}

func stringList(v any) ([]string, error) {
	switch v := v.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or a list of strings")
	}
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: frontmatter: %s", e.File, e.Message)
	}
	return "frontmatter: " + e.Message
}

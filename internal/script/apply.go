package script

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// placeholderRe matches {{key}} and {{key|default:value}} markers.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*(\|default:([^}]*))?\s*\}\}`)

// ApplyTemplate substitutes placeholders structurally, walking the
// document's string leaves rather than operating on serialized text,
// which avoids escaping pitfalls. params supplies string values for
// known keys; a placeholder whose key is absent from params falls back
// to its own `|default:value` when present, otherwise it is left
// untouched so a later pass (or the caller) can still see it was
// unresolved.
func ApplyTemplate(doc any, params map[string]string) any {
	switch val := doc.(type) {
	case string:
		return substitutePlaceholders(val, params)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = ApplyTemplate(v, params)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = ApplyTemplate(v, params)
		}
		return out
	default:
		return val
	}
}

func substitutePlaceholders(s string, params map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		m := placeholderRe.FindStringSubmatch(match)
		key, hasDefault, def := m[1], m[2] != "", m[3]
		if v, ok := params[key]; ok {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

// hasUnresolvedPlaceholder reports whether s still contains a
// `{{key|default:value}}` or bare `{{key}}` marker after substitution —
// used by callers that want to detect templates applied with missing
// required parameters.
func hasUnresolvedPlaceholder(s string) bool {
	return strings.Contains(s, "{{")
}

// ApplyScriptTemplate substitutes params into a named registered template
// and parses the result into a Document. Unlike ApplyTemplate, it
// operates on a template name from the fixed registry rather than an
// arbitrary document.
func ApplyScriptTemplate(templateName string, params map[string]string) (Document, error) {
	tmpl, ok := Templates[templateName]
	if !ok {
		return Document{}, errMalformed("unknown template %q", templateName)
	}

	substituted := ApplyTemplate(map[string]any{"sequence": tmpl["sequence"]}, params)

	data, err := json.Marshal(substituted)
	if err != nil {
		return Document{}, errMalformed("marshal substituted template: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, errMalformed("unmarshal substituted template: %v", err)
	}

	if hasUnresolvedPlaceholder(string(data)) {
		return Document{}, errMalformed("template %q still has unresolved placeholders after substitution", templateName)
	}

	return doc, nil
}

// ListTemplateNames returns every registered template name in
// deterministic order, used by callers (e.g. cmd/schedulerd) that want to
// enumerate what's available.
func ListTemplateNames() []string {
	names := make([]string, 0, len(Templates))
	for name := range Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package textutil

import "strings"

// RemoveMarkdownQuotes strips fenced-code markers the models like to wrap
// answers in. Applying it to already-clean text is a no-op.
func RemoveMarkdownQuotes(text string) string {
	result := strings.TrimSpace(text)
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)

	for _, lang := range []string{"sparql", "json", "sql"} {
		if strings.HasPrefix(strings.ToLower(result), lang+"\n") {
			result = result[len(lang):]
			break
		}
	}

	return strings.TrimSpace(result)
}

// DropPrefixDeclarations removes PREFIX lines for the given prefix labels.
// The generator tends to declare xsd: and foaf: without using them.
func DropPrefixDeclarations(query string, labels ...string) string {
	lines := strings.Split(query, "\n")
	kept := make([]string, 0, len(lines))

outer:
	for _, line := range lines {
		trimmed := strings.TrimSpace(strings.ToLower(line))
		for _, label := range labels {
			if strings.HasPrefix(trimmed, "prefix "+strings.ToLower(label)+":") {
				continue outer
			}
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

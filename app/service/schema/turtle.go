package schema

import (
	"fmt"
	"sort"
	"strings"
)

var wellKnownPrefixes = map[string]string{
	"http://www.w3.org/1999/02/22-rdf-syntax-ns#": "rdf",
	"http://www.w3.org/2000/01/rdf-schema#":       "rdfs",
	"http://www.w3.org/2002/07/owl#":              "owl",
	"http://www.w3.org/2001/XMLSchema#":           "xsd",
}

// render assembles the schema description: prefix bindings, the numbered
// class list, then the Turtle serialisation of the synthesised schema graph.
func render(classes []classInfo, properties map[string][]propertyInfo) string {
	prefixes := assignPrefixes(classes, properties)

	var b strings.Builder

	b.WriteString("Namespace prefixes:\n")
	for _, ns := range sortedNamespaces(prefixes) {
		fmt.Fprintf(&b, "  %s: <%s>\n", prefixes[ns], ns)
	}

	b.WriteString("\nClasses:\n")
	for i, class := range classes {
		fmt.Fprintf(&b, "  %d. <%s> (%s)", i+1, class.URI, localName(class.URI))
		if class.Label != "" {
			fmt.Fprintf(&b, " label: %s", class.Label)
		}
		if class.Comment != "" {
			fmt.Fprintf(&b, " comment: %s", class.Comment)
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nSchema graph:\n")
	b.WriteString(renderTurtle(classes, properties, prefixes))

	return b.String()
}

func renderTurtle(classes []classInfo, properties map[string][]propertyInfo, prefixes map[string]string) string {
	var b strings.Builder

	for _, ns := range sortedNamespaces(prefixes) {
		fmt.Fprintf(&b, "@prefix %s: <%s> .\n", prefixes[ns], ns)
	}
	b.WriteByte('\n')

	for _, class := range classes {
		props := properties[class.URI]
		if len(props) == 0 {
			continue
		}

		fmt.Fprintf(&b, "%s\n", qname(class.URI, prefixes))
		for i, prop := range props {
			object := "[]"
			if prop.ObjectType != "" {
				object = qname(prop.ObjectType, prefixes)
			}

			terminator := " ;"
			if i == len(props)-1 {
				terminator = " ."
			}

			fmt.Fprintf(&b, "    %s %s%s\n", qname(prop.URI, prefixes), object, terminator)
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// assignPrefixes gives every namespace a stable label: well-known vocabularies
// keep their usual prefix, the rest are numbered in sorted order.
func assignPrefixes(classes []classInfo, properties map[string][]propertyInfo) map[string]string {
	namespaces := make(map[string]bool)

	for _, class := range classes {
		namespaces[namespaceOf(class.URI)] = true
		for _, prop := range properties[class.URI] {
			namespaces[namespaceOf(prop.URI)] = true
			if prop.ObjectType != "" {
				namespaces[namespaceOf(prop.ObjectType)] = true
			}
		}
	}

	sorted := make([]string, 0, len(namespaces))
	for ns := range namespaces {
		sorted = append(sorted, ns)
	}
	sort.Strings(sorted)

	prefixes := make(map[string]string, len(sorted))
	counter := 1
	for _, ns := range sorted {
		if known, ok := wellKnownPrefixes[ns]; ok {
			prefixes[ns] = known
			continue
		}
		prefixes[ns] = fmt.Sprintf("ns%d", counter)
		counter++
	}

	return prefixes
}

func sortedNamespaces(prefixes map[string]string) []string {
	result := make([]string, 0, len(prefixes))
	for ns := range prefixes {
		result = append(result, ns)
	}
	sort.Strings(result)
	return result
}

func qname(uri string, prefixes map[string]string) string {
	ns := namespaceOf(uri)
	local := localName(uri)

	if prefix, ok := prefixes[ns]; ok && local != uri && turtleSafe(local) {
		return prefix + ":" + local
	}

	return "<" + uri + ">"
}

func turtleSafe(local string) bool {
	for _, r := range local {
		if !(r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return local != ""
}

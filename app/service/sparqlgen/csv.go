package sparqlgen

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"kgbot/app/client/sparqlhttp"
)

// WriteCSV persists a SELECT result: the first row is the projection
// variables in order, then one row per binding. It returns the rendered CSV
// text for the token-budget check.
func WriteCSV(result *sparqlhttp.Result, path string) (string, error) {
	var builder strings.Builder

	writer := csv.NewWriter(&builder)

	if err := writer.Write(result.Vars); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range result.Rows {
		record := make([]string, len(result.Vars))
		for i, name := range result.Vars {
			record[i] = row[name]
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	rendered := builder.String()

	if err := os.WriteFile(path, []byte(rendered), 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return rendered, nil
}

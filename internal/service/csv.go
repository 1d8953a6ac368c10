package service

import (
	"fmt"
	"strings"

	"outreachai/internal/models"
)

// requiredColumns must be present in the CSV header row
var requiredColumns = []string{"name", "email"}

// ParseContacts parses uploaded CSV text into contact records. The first line
// is the header row; columns are matched case-insensitively against the known
// contact fields and unknown columns are ignored. Splitting is a naive comma
// split with no quoting support, matching what the uploader historically
// accepted.
func ParseContacts(csvText string) ([]models.Contact, error) {
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(csvText, "\r\n", "\n")), "\n")
	if len(lines) < 2 {
		return nil, &ValidationError{Message: "CSV must have a header row and at least one data row"}
	}

	headers := splitRow(lines[0])

	var missing []string
	for _, col := range requiredColumns {
		found := false
		for _, h := range headers {
			if strings.EqualFold(h, col) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Message: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))}
	}

	contacts := []models.Contact{}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}

		values := splitRow(line)
		contact := models.Contact{}
		for i, header := range headers {
			value := ""
			if i < len(values) {
				value = values[i]
			}
			switch strings.ToLower(header) {
			case "name":
				contact.Name = value
			case "email":
				contact.Email = value
			case "company":
				contact.Company = value
			case "position":
				contact.Position = value
			case "industry":
				contact.Industry = value
			case "notes":
				contact.Notes = value
			}
		}
		contacts = append(contacts, contact)
	}

	if len(contacts) == 0 {
		return nil, &ValidationError{Message: "CSV has no data rows"}
	}

	return contacts, nil
}

func splitRow(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

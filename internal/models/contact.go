package models

// Contact represents a recipient record parsed from an uploaded CSV row
type Contact struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
	Industry string `json:"industry,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Draft represents a per-contact email generated by the automation engine.
// Subject and body may be edited locally before sending.
type Draft struct {
	RecipientEmail string `json:"recipientEmail"`
	RecipientName  string `json:"recipientName"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// DisplayName returns the contact's name, falling back to the email address
func (c *Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Email
}

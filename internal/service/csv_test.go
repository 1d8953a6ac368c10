package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseContacts_ValidCSV parses a complete upload with all known columns
func TestParseContacts_ValidCSV(t *testing.T) {
	csvText := "name,email,company,position,industry,notes\n" +
		"Ada Lovelace,ada@example.com,Analytical Engines,CTO,Computing,met at conf\n" +
		"Grace Hopper,grace@example.com,Navy,Admiral,Defense,"

	contacts, err := ParseContacts(csvText)

	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Ada Lovelace", contacts[0].Name)
	assert.Equal(t, "ada@example.com", contacts[0].Email)
	assert.Equal(t, "Analytical Engines", contacts[0].Company)
	assert.Equal(t, "CTO", contacts[0].Position)
	assert.Equal(t, "Computing", contacts[0].Industry)
	assert.Equal(t, "met at conf", contacts[0].Notes)
	assert.Equal(t, "Grace Hopper", contacts[1].Name)
	assert.Equal(t, "", contacts[1].Notes)
}

// TestParseContacts_HeaderCaseInsensitive matches required columns in any case
func TestParseContacts_HeaderCaseInsensitive(t *testing.T) {
	csvText := "Name,EMAIL\nAda,ada@example.com"

	contacts, err := ParseContacts(csvText)

	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada", contacts[0].Name)
	assert.Equal(t, "ada@example.com", contacts[0].Email)
}

// TestParseContacts_MissingRequiredColumn rejects a header without email
func TestParseContacts_MissingRequiredColumn(t *testing.T) {
	csvText := "name,company\nAda,Analytical Engines"

	_, err := ParseContacts(csvText)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "email")
}

// TestParseContacts_HeaderOnly rejects an upload with no data rows
func TestParseContacts_HeaderOnly(t *testing.T) {
	_, err := ParseContacts("name,email")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

// TestParseContacts_BlankLinesSkipped ignores empty lines between rows
func TestParseContacts_BlankLinesSkipped(t *testing.T) {
	csvText := "name,email\nAda,ada@example.com\n\n\nGrace,grace@example.com\n"

	contacts, err := ParseContacts(csvText)

	require.NoError(t, err)
	assert.Len(t, contacts, 2)
}

// TestParseContacts_OnlyBlankDataRows rejects an upload of empty lines
func TestParseContacts_OnlyBlankDataRows(t *testing.T) {
	_, err := ParseContacts("name,email\n\n  \n")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

// TestParseContacts_CRLFNormalized handles Windows line endings
func TestParseContacts_CRLFNormalized(t *testing.T) {
	csvText := "name,email\r\nAda,ada@example.com\r\n"

	contacts, err := ParseContacts(csvText)

	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada", contacts[0].Name)
}

// TestParseContacts_ShortRows fills missing trailing values with empty strings
func TestParseContacts_ShortRows(t *testing.T) {
	csvText := "name,email,company\nAda,ada@example.com"

	contacts, err := ParseContacts(csvText)

	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "", contacts[0].Company)
}

// TestParseContacts_ValuesTrimmed strips whitespace around values
func TestParseContacts_ValuesTrimmed(t *testing.T) {
	csvText := "name, email\n  Ada ,  ada@example.com "

	contacts, err := ParseContacts(csvText)

	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada", contacts[0].Name)
	assert.Equal(t, "ada@example.com", contacts[0].Email)
}

// TestParseContacts_UnknownColumnsIgnored keeps only known fields
func TestParseContacts_UnknownColumnsIgnored(t *testing.T) {
	csvText := "name,email,favorite_color\nAda,ada@example.com,mauve"

	contacts, err := ParseContacts(csvText)

	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada", contacts[0].Name)
}

package mailing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSource(t *testing.T) {
	src, err := ReadSource(strings.NewReader("name,Email Address\nAnn,ann@example.com\nBob,bob@example.com\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "Email Address"}, src.Headers)
	assert.Equal(t, []string{"Email Address"}, src.EmailColumns())
	require.Len(t, src.Rows, 2)
	assert.Equal(t, "ann@example.com", src.Rows[0]["Email Address"])
	assert.Equal(t, "Bob", src.Rows[1]["name"])
}

func TestReadSourceNoEmailColumn(t *testing.T) {
	_, err := ReadSource(strings.NewReader("name,phone\nAnn,123\n"))
	assert.ErrorIs(t, err, ErrNoEmailColumn)
}

func TestReadSourceEmpty(t *testing.T) {
	_, err := ReadSource(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadSourceShortRecords(t *testing.T) {
	src, err := ReadSource(strings.NewReader("email,name\nann@example.com\n"))
	require.NoError(t, err)
	assert.Equal(t, "", src.Rows[0]["name"])
}

func TestBuildMessagesPersonalizes(t *testing.T) {
	src, err := ReadSource(strings.NewReader("name,email\nAnn,ann@example.com\nBob,bob@example.com\n"))
	require.NoError(t, err)

	msgs, invalid := BuildMessages(src, "email", "Hello {name}", "<p>Hi {name}, this is for {email}</p>", NewRenderer())
	require.Len(t, msgs, 2)
	assert.Empty(t, invalid)

	assert.Equal(t, "Hello Ann", msgs[0].Subject)
	assert.Equal(t, "<p>Hi Ann, this is for ann@example.com</p>", msgs[0].Body)
	assert.Equal(t, 1, msgs[0].RowNumber)
	assert.Equal(t, "Hello Bob", msgs[1].Subject)
	assert.Equal(t, 2, msgs[1].RowNumber)
}

func TestBuildMessagesMissingEmail(t *testing.T) {
	src, err := ReadSource(strings.NewReader("name,email\nAnn,ann@example.com\nBob,\nCid,cid@example.com\n"))
	require.NoError(t, err)

	msgs, invalid := BuildMessages(src, "email", "s", "b", NewRenderer())
	require.Len(t, msgs, 2)
	require.Len(t, invalid, 1)

	assert.Equal(t, 2, invalid[0].RowNumber)
	assert.Equal(t, "Missing email address", invalid[0].Message)
	// Row numbers track the source file, not the send order.
	assert.Equal(t, 3, msgs[1].RowNumber)
}

func TestPersonalizeLeavesUnknownPlaceholders(t *testing.T) {
	out := Personalize("Hello {name}, code {code}", map[string]string{"name": "Ann"})
	assert.Equal(t, "Hello Ann, code {code}", out)
}

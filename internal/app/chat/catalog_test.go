package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog(t *testing.T) {
	catalog, err := NewCatalog([]string{" General", "Tech ", "General"})
	require.NoError(t, err)

	assert.Equal(t, []string{"General", "Tech"}, catalog.Names())
	assert.True(t, catalog.Contains("Tech"))
	assert.False(t, catalog.Contains("tech"))
	assert.False(t, catalog.Contains("Cooking"))

	names := catalog.Names()
	names[0] = "Changed"
	assert.Equal(t, "General", catalog.Names()[0])
}

func TestNewCatalog_Rejects(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err)

	_, err = NewCatalog([]string{"General", "  "})
	assert.Error(t, err)
}

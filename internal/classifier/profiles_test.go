package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  - name: "המתכנן"
    description: "מתכנן זהיר"
  - name: "המהמר"
    description: "אוהב סיכונים"
  - name: "המאוזן"
    description: "משלב בין סיכון לתשואה"
  - name: "המחושב"
    description: "סיכונים מבוקרים"
`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Profiles, 4)
	require.Equal(t, ProfilePlanner, catalog.Profiles[0].Name)
}

func TestLoadCatalogMissingProfile(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  - name: "המתכנן"
    description: "מתכנן זהיר"
`)

	_, err := LoadCatalog(path)
	require.Error(t, err)
}

func TestLoadCatalogUnknownName(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  - name: "המשקיען"
    description: "לא קיים"
  - name: "המהמר"
    description: "b"
  - name: "המאוזן"
    description: "c"
  - name: "המחושב"
    description: "d"
`)

	_, err := LoadCatalog(path)
	require.ErrorContains(t, err, "недопустимое имя")
}

func TestLoadCatalogDuplicateName(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  - name: "המתכנן"
    description: "a"
  - name: "המתכנן"
    description: "b"
  - name: "המאוזן"
    description: "c"
  - name: "המחושב"
    description: "d"
`)

	_, err := LoadCatalog(path)
	require.ErrorContains(t, err, "дважды")
}

func TestLoadCatalogMissingDescription(t *testing.T) {
	path := writeCatalog(t, `
profiles:
  - name: "המתכנן"
    description: "a"
  - name: "המהמר"
    description: "b"
  - name: "המאוזן"
    description: "c"
  - name: "המחושב"
    description: ""
`)

	_, err := LoadCatalog(path)
	require.Error(t, err)
}

func TestDefaultCatalogIsValid(t *testing.T) {
	catalog := DefaultCatalog()
	require.NoError(t, validateCatalog(catalog))
}

func TestPromptTextContainsAllProfiles(t *testing.T) {
	text := DefaultCatalog().PromptText()
	for _, label := range Labels() {
		require.Contains(t, text, label)
	}
}

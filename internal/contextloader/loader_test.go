package contextloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContextTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("lore_bible.md", "# Lore\nThe city never sleeps.")
	write("style/01_voice.md", "Short sentences.")
	write("style/02_tense.md", "Past tense.")
	write("locations/docks.md", "The docks.")
	write("locations/tower.md", "The tower.")
	write("characters/ada.md", "Ada, a welder.")
	write("characters/bren.md", "Bren, a clerk.")
	write("characters/cole.md", "Cole, a courier.")
	write("characters/dara.md", "Dara, a medic.")
	write("world/economy.md", "Scrip economy.")
	return dir
}

func TestLoadRequiresLoreBible(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, "run-x", false, nil)
	var ctxErr *Error
	require.ErrorAs(t, err, &ctxErr)
	assert.Contains(t, ctxErr.Path, "lore_bible.md")
}

func TestLoadStyleSortedAndConcatenated(t *testing.T) {
	dir := writeContextTree(t)
	sel, err := Load(dir, "run-x", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "Short sentences.\n\nPast tense.", sel.StyleRules)
}

func TestSelectionIsDeterministicPerRunID(t *testing.T) {
	dir := writeContextTree(t)

	first, err := Load(dir, "test-run-001", false, nil)
	require.NoError(t, err)
	second, err := Load(dir, "test-run-001", false, nil)
	require.NoError(t, err)

	assert.Equal(t, first.LocationName, second.LocationName)
	assert.Equal(t, first.CharacterNames, second.CharacterNames)
}

func TestSelectionBounds(t *testing.T) {
	dir := writeContextTree(t)
	sel, err := Load(dir, "run-bounds", false, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, sel.LocationName)
	assert.GreaterOrEqual(t, len(sel.CharacterNames), 2)
	assert.LessOrEqual(t, len(sel.CharacterNames), 3)
}

func TestFewerCharactersThanMinimumWarnsAndUsesAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lore_bible.md"), []byte("lore"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "characters"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "characters", "solo.md"), []byte("Solo."), 0o644))

	var warned bool
	sel, err := Load(dir, "run-few", false, func(string, ...any) { warned = true })
	require.NoError(t, err)
	assert.True(t, warned)
	assert.Equal(t, []string{"solo.md"}, sel.CharacterNames)
}

func TestMissingOptionalTreesAreNonFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lore_bible.md"), []byte("lore"), 0o644))

	sel, err := Load(dir, "run-sparse", true, nil)
	require.NoError(t, err)
	assert.Empty(t, sel.LocationName)
	assert.Empty(t, sel.CharacterNames)
	assert.Empty(t, sel.WorldFiles)
}

func TestWorldFilesFoldedIntoLore(t *testing.T) {
	dir := writeContextTree(t)
	sel, err := Load(dir, "run-world", true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"economy.md"}, sel.WorldFiles)
	assert.Contains(t, sel.LoreBible, "Scrip economy.")
}

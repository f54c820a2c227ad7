package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalogs(t *testing.T) {
	m, err := Load("en")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"en", "ru"}, m.Languages())

	en := m.Translator("en")
	assert.Equal(t, "Unknown command: /foo", en.Tf("bot.unknown_command", map[string]string{"command": "foo"}))
	assert.Equal(t, "No energy", en.T("economy.no_energy"))

	ru := m.Translator("ru-RU")
	assert.Equal(t, "ru", ru.Lang())
	assert.Equal(t, "Нет энергии", ru.T("economy.no_energy"))
}

func TestTranslator_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"catalog/en.yaml": {Data: []byte("en:\n  greet: Hello\n  only_en: English\n")},
		"catalog/de.yaml": {Data: []byte("de:\n  greet: Hallo\n")},
	}

	m, err := LoadFS(fsys, "catalog", "")
	require.NoError(t, err)

	de := m.Translator("DE")
	assert.Equal(t, "Hallo", de.T("greet"))
	assert.Equal(t, "English", de.T("only_en"))
	assert.Equal(t, "missing.key", de.T("missing.key"))

	assert.Equal(t, "en", m.Translator("fr").Lang())
	assert.Equal(t, "en", m.Translator("").Lang())
}

func TestLoadFS_MissingDefault(t *testing.T) {
	fsys := fstest.MapFS{"catalog/de.yaml": {Data: []byte("de:\n  greet: Hallo\n")}}

	_, err := LoadFS(fsys, "catalog", "en")
	assert.Error(t, err)
}

package localization_test

import (
	"os"
	"path/filepath"
	"testing"

	"friendfinder/backend/internal/localization"

	"github.com/stretchr/testify/assert"
)

func TestGetStringBuiltins(t *testing.T) {
	l := localization.NewLocalizer()

	assert.Equal(t, "Partner found! Say hello.", l.GetString("en", localization.KeyMatchFound))
	assert.Equal(t, "Співрозмовника знайдено! Почніть діалог.", l.GetString("uk", localization.KeyMatchFound))
}

func TestGetStringFallsBackToEnglish(t *testing.T) {
	l := localization.NewLocalizer()

	assert.Equal(t, "Your partner left the chat.", l.GetString("fr", localization.KeyPartnerLeft))
}

func TestGetStringUnknownKeyReturnsKey(t *testing.T) {
	l := localization.NewLocalizer()

	assert.Equal(t, "no_such_key", l.GetString("en", "no_such_key"))
}

func TestLoadDirOverlays(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"),
		[]byte(`{"match_found": "Matched!"}`), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "pl.json"),
		[]byte(`{"partner_left": "Rozmówca wyszedł."}`), 0o644))

	l := localization.NewLocalizer()
	assert.NoError(t, l.LoadDir(dir))

	assert.Equal(t, "Matched!", l.GetString("en", localization.KeyMatchFound), "overlay overrides the builtin")
	assert.Equal(t, "Your partner left the chat.", l.GetString("en", localization.KeyPartnerLeft), "untouched keys survive")
	assert.Equal(t, "Rozmówca wyszedł.", l.GetString("pl", localization.KeyPartnerLeft), "new languages are added")
}

func TestLoadDirMissingDirectory(t *testing.T) {
	l := localization.NewLocalizer()
	assert.Error(t, l.LoadDir("/no/such/dir"))
}

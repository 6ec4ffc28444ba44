// Package localization provides functionality for internationalization (i18n)
// of the system messages pushed into random-chat sessions (match found,
// partner left, queue expired). It ships built-in translations and can overlay
// them with JSON files named by language code (e.g., "en.json").
package localization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Keys used by the chat hub.
const (
	KeyMatchFound          = "match_found"
	KeyPartnerLeft         = "partner_left"
	KeyPartnerDisconnected = "partner_disconnected"
	KeySessionReported     = "session_reported"
	KeyQueueExpired        = "queue_expired"
)

var defaults = map[string]map[string]string{
	"en": {
		KeyMatchFound:          "Partner found! Say hello.",
		KeyPartnerLeft:         "Your partner left the chat.",
		KeyPartnerDisconnected: "Your partner disconnected.",
		KeySessionReported:     "This chat was ended after a report.",
		KeyQueueExpired:        "No partner found in time. Please try again.",
	},
	"uk": {
		KeyMatchFound:          "Співрозмовника знайдено! Почніть діалог.",
		KeyPartnerLeft:         "Співрозмовник покинув чат.",
		KeyPartnerDisconnected: "Співрозмовник від'єднався.",
		KeySessionReported:     "Чат завершено через скаргу.",
		KeyQueueExpired:        "Співрозмовника не знайдено. Спробуйте ще раз.",
	},
}

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer returns a Localizer preloaded with the built-in translations.
func NewLocalizer() *Localizer {
	l := &Localizer{translations: make(map[string]map[string]string)}
	for lang, strs := range defaults {
		m := make(map[string]string, len(strs))
		for k, v := range strs {
			m[k] = v
		}
		l.translations[lang] = m
	}
	return l
}

// LoadDir overlays translations from a directory of <lang>.json files.
// Keys present in the files override the built-in strings.
func (l *Localizer) LoadDir(path string) error {
	files, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read localization directory: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(path, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		if l.translations[lang] == nil {
			l.translations[lang] = make(map[string]string)
		}
		for k, v := range translations {
			l.translations[lang][k] = v
		}
	}

	return nil
}

// GetString returns the localized string for a given key and language.
// Falls back to English, then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != "en" {
		if enTranslations, ok := l.translations["en"]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

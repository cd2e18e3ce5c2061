// Package localization provides functionality for internationalization (i18n).
// It loads translation strings from JSON files and renders user-facing error text
// keyed by the stable error codes of package errs.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"friendchat/backend/internal/errs"
)

// DefaultLanguage is used when the caller's language has no translation.
const DefaultLanguage = "en"

//go:embed locales/*.json
var embedded embed.FS

// Localizer manages the translations for the application.
// It holds a map of languages, each with its own map of translation keys and values.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewDefault returns a Localizer over the translations compiled into the binary.
func NewDefault() (*Localizer, error) {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded locales: %w", err)
	}
	return NewLocalizer(sub)
}

// NewLocalizer creates and returns a new Localizer instance.
// The file system root should contain JSON files named with the language code (e.g., "en.json").
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, path.Join(".", file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	if value, ok := l.lookup(lang, key); ok {
		return value
	}
	return key
}

// ErrorMessage renders err for the caller. Internal errors always map to the generic
// text; unknown codes fall back to the English message carried by the error.
func (l *Localizer) ErrorMessage(lang string, err error) string {
	code := errs.CodeOf(err)
	if errs.KindOf(err) == errs.KindInternal {
		code = "internal"
	}
	if value, ok := l.lookup(lang, code); ok {
		return value
	}
	return errs.PublicMessage(err)
}

// Languages returns the loaded language codes.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	langs := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		langs = append(langs, lang)
	}
	return langs
}

func (l *Localizer) lookup(lang, key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value, true
		}
	}

	// Fallback to a default language if the key is not found in the specified language
	if lang != DefaultLanguage {
		if enTranslations, ok := l.translations[DefaultLanguage]; ok {
			if value, ok := enTranslations[key]; ok {
				return value, true
			}
		}
	}
	return "", false
}

// LanguageFromHeader picks the primary language tag of an Accept-Language header,
// e.g. "uk-UA,uk;q=0.9,en;q=0.8" -> "uk".
func LanguageFromHeader(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	first, _, _ = strings.Cut(strings.TrimSpace(first), "-")
	first = strings.ToLower(strings.TrimSpace(first))
	if first == "" || first == "*" {
		return DefaultLanguage
	}
	return first
}

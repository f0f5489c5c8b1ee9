package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Translator renders operator-facing texts from a locale file.
type Translator struct {
	translations map[string]string
	fallback     map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys; keys missing there
// fall back to locales/en.yaml.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	if langCode == "" {
		langCode = "en"
	}
	t, err := load(fsys, langCode)
	if err != nil {
		return nil, err
	}
	if langCode != "en" {
		if en, err := load(fsys, "en"); err == nil {
			t.fallback = en.translations
		}
	}
	return t, nil
}

func load(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the formatted text for key, or key itself when unknown.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		if format, ok = t.fallback[key]; !ok {
			return key
		}
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Has reports whether key is defined in the active or fallback locale.
func (t *Translator) Has(key string) bool {
	if _, ok := t.translations[key]; ok {
		return true
	}
	_, ok := t.fallback[key]
	return ok
}

// Package i18n loads YAML message catalogs and resolves dot-separated keys
// per user language, falling back to the default language and then to the
// key itself.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultDir = "locales"

// Translator resolves localized strings for a single language.
type Translator interface {
	T(key string) string
	Lang() string
}

// Manager holds the message catalogs for every loaded language.
type Manager struct {
	catalogs    map[string]catalog
	defaultLang string
}

type catalog map[string]string

// Load reads catalogs from the default locales directory.
func Load(defaultLang string) (*Manager, error) {
	return LoadFromDir(defaultDir, defaultLang)
}

// LoadFromDir reads every YAML file under dir. Each file maps a top-level
// language code to a nested tree of messages; nested keys are joined with
// dots, so `menu: {main: X}` under `en` becomes en "menu.main".
func LoadFromDir(dir, defaultLang string) (*Manager, error) {
	if defaultLang == "" {
		defaultLang = "en"
	}

	names, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}

	catalogs := make(map[string]catalog)
	for _, name := range names {
		if err := mergeFile(filepath.Join(dir, name), catalogs); err != nil {
			return nil, err
		}
	}

	if catalogs[defaultLang] == nil {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{catalogs: catalogs, defaultLang: defaultLang}, nil
}

// Translator picks the catalog for lang, or the default one when lang is
// unknown. Safe to call on a nil Manager; the result then echoes keys back.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	lang = strings.ToLower(strings.TrimSpace(lang))
	if m.catalogs[lang] == nil {
		lang = m.defaultLang
	}

	return translator{
		lang:     lang,
		primary:  m.catalogs[lang],
		fallback: m.catalogs[m.defaultLang],
	}
}

// Languages lists every loaded language code.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	out := make([]string, 0, len(m.catalogs))
	for lang := range m.catalogs {
		out = append(out, lang)
	}
	return out
}

type translator struct {
	lang     string
	primary  catalog
	fallback catalog
}

func (t translator) Lang() string { return t.lang }

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	if msg, ok := t.primary[key]; ok {
		return msg
	}
	if msg, ok := t.fallback[key]; ok {
		return msg
	}
	return key
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lower := strings.ToLower(entry.Name())
		if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
			names = append(names, entry.Name())
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}
	return names, nil
}

func mergeFile(path string, catalogs map[string]catalog) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("i18n: read file %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("i18n: parse file %s: %w", path, err)
	}

	for lang, tree := range doc {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}

		dst := catalogs[lang]
		if dst == nil {
			dst = make(catalog)
			catalogs[lang] = dst
		}
		walk("", tree, dst)
	}
	return nil
}

// walk flattens a YAML subtree into dot-joined keys. Non-string leaves are
// skipped rather than stringified so a stray number in a catalog file does
// not leak into bot output.
func walk(prefix string, node any, out catalog) {
	switch v := node.(type) {
	case string:
		if prefix != "" {
			out[prefix] = v
		}
	case map[string]any:
		for key, child := range v {
			walk(join(prefix, key), child, out)
		}
	case map[any]any:
		for key, child := range v {
			name, ok := key.(string)
			if !ok {
				continue
			}
			walk(join(prefix, name), child, out)
		}
	}
}

func join(prefix, key string) string {
	if key == "" {
		return prefix
	}
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

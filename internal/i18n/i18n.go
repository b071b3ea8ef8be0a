// Package i18n provides translation lookup for the USSD screens.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// DefaultLocale is the fallback locale for missing keys.
const DefaultLocale = "en"

// Supported lists the locales with a bundled catalog, in menu order.
var Supported = []string{"en", "rw", "fr", "sw"}

// Params are the interpolation values of a translation, referenced as %{name}.
type Params map[string]any

// Translator resolves translation keys per locale.
// Lookups never fail: a missing key falls back to the default locale and then to the key itself.
type Translator struct {
	catalogs    map[string]map[string]string
	overrideDir string
	mu          sync.RWMutex
}

// New loads the bundled catalogs, then any override files found in dir (may be empty).
func New(dir string) (*Translator, error) {
	t := &Translator{overrideDir: dir}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload re-reads the bundled catalogs and the override directory.
// On error the previously loaded catalogs stay in place.
func (t *Translator) Reload() error {
	catalogs := make(map[string]map[string]string, len(Supported))
	for _, locale := range Supported {
		data, err := localesFS.ReadFile("locales/" + locale + ".yaml")
		if err != nil {
			return fmt.Errorf("read bundled catalog %s: %w", locale, err)
		}
		flat, err := parseCatalog(data)
		if err != nil {
			return fmt.Errorf("parse bundled catalog %s: %w", locale, err)
		}
		catalogs[locale] = flat
	}

	if t.overrideDir != "" {
		if err := loadOverrides(t.overrideDir, catalogs); err != nil {
			return err
		}
	}

	t.mu.Lock()
	t.catalogs = catalogs
	t.mu.Unlock()
	return nil
}

// OverrideDir returns the directory scanned for override catalogs.
func (t *Translator) OverrideDir() string {
	return t.overrideDir
}

func loadOverrides(dir string, catalogs map[string]map[string]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		locale := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read override %s: %w", name, err)
		}
		flat, err := parseCatalog(data)
		if err != nil {
			return fmt.Errorf("parse override %s: %w", name, err)
		}
		dst, ok := catalogs[locale]
		if !ok {
			dst = make(map[string]string, len(flat))
			catalogs[locale] = dst
		}
		for k, v := range flat {
			dst[k] = v
		}
		log.Debug().Str("locale", locale).Int("keys", len(flat)).Msg("Loaded translation overrides")
	}
	return nil
}

// parseCatalog flattens a nested YAML document into dotted keys.
func parseCatalog(data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	flat := make(map[string]string)
	flatten("", doc, flat)
	return flat, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// T translates key for locale, interpolating params.
func (t *Translator) T(key string, params Params, locale string) string {
	t.mu.RLock()
	text, ok := t.lookup(key, Normalize(locale))
	t.mu.RUnlock()
	if !ok {
		text = key
	}
	return interpolate(text, params)
}

func (t *Translator) lookup(key, locale string) (string, bool) {
	if catalog, ok := t.catalogs[locale]; ok {
		if text, ok := catalog[key]; ok {
			return text, true
		}
	}
	if locale != DefaultLocale {
		if text, ok := t.catalogs[DefaultLocale][key]; ok {
			return text, true
		}
	}
	return "", false
}

// Keys returns the sorted keys of a locale catalog.
func (t *Translator) Keys(locale string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	catalog := t.catalogs[locale]
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func interpolate(text string, params Params) string {
	if len(params) == 0 || !strings.Contains(text, "%{") {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "%{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// IsSupported reports whether locale has a bundled catalog.
func IsSupported(locale string) bool {
	for _, l := range Supported {
		if l == locale {
			return true
		}
	}
	return false
}

// Normalize maps a locale code such as "rw-RW" or "FR" to a supported base
// language, falling back to DefaultLocale.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if IsSupported(code) {
		return code
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLocale
	}
	base, _ := tag.Base()
	if IsSupported(base.String()) {
		return base.String()
	}
	return DefaultLocale
}

// Package l10n serves translated UI strings from embedded YAML catalogs.
package l10n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLanguage is the source language of every key.
const BaseLanguage = "en"

type catalogFile struct {
	Language     string              `yaml:"language"`
	PluralForms  string              `yaml:"plural_forms"`
	Translations map[string]string   `yaml:"translations"`
	Plurals      map[string][]string `yaml:"plurals"`
}

// Table is the string table of one language.
type Table struct {
	lang         string
	rule         PluralRule
	translations map[string]string
	plurals      map[string][]string
}

// NewTable builds a table from already parsed data.
func NewTable(lang string, rule PluralRule, translations map[string]string, plurals map[string][]string) *Table {
	if translations == nil {
		translations = map[string]string{}
	}
	if plurals == nil {
		plurals = map[string][]string{}
	}
	return &Table{lang: lang, rule: rule, translations: translations, plurals: plurals}
}

func (t *Table) Language() string {
	return t.lang
}

func (t *Table) PluralRule() PluralRule {
	return t.rule
}

// Has reports whether key has a translation.
func (t *Table) Has(key string) bool {
	_, ok := t.translations[key]
	return ok
}

// T translates key by exact match and formats it with args. Unknown keys
// are returned untranslated.
func (t *Table) T(key string, args ...any) string {
	text := key
	if t != nil {
		if translated, ok := t.translations[key]; ok {
			text = translated
		}
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

// PluralKey is the catalog key of a singular/plural pair.
func PluralKey(singular, plural string) string {
	return "_" + singular + "_::_" + plural + "_"
}

// N translates a counted string. The form is chosen by the table's plural
// rule; "%n" and "{count}" are replaced by n before args are applied.
func (t *Table) N(singular, plural string, n int, args ...any) string {
	var text string
	if forms, ok := t.forms(singular, plural); ok {
		text = forms[t.rule.Index(n)]
	} else if English.Index(n) == 0 {
		text = singular
	} else {
		text = plural
	}

	count := strconv.Itoa(n)
	text = strings.ReplaceAll(text, "%n", count)
	text = strings.ReplaceAll(text, "{count}", count)
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

func (t *Table) forms(singular, plural string) ([]string, bool) {
	if t == nil {
		return nil, false
	}
	forms, ok := t.plurals[PluralKey(singular, plural)]
	if !ok || len(forms) < t.rule.NPlurals {
		return nil, false
	}
	return forms, true
}

// Bundle holds the tables of every available language.
type Bundle struct {
	tables  map[string]*Table
	ordered []*Table // parallel to tags
	tags    []language.Tag
	matcher language.Matcher
}

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// LoadEmbedded loads the catalogs shipped with the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedLocales)
}

// LoadFromFS loads locales/<lang>.yaml files from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)

	tables := make(map[string]*Table, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		table, err := parseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if want := strings.TrimSuffix(path.Base(p), ".yaml"); table.lang != want {
			return nil, fmt.Errorf("catalog %s: language %q must match file name", p, table.lang)
		}
		tables[table.lang] = table
	}

	return NewBundle(tables)
}

// NewBundle builds a bundle from tables. The base language is required and
// is the fallback of Match.
func NewBundle(tables map[string]*Table) (*Bundle, error) {
	if _, ok := tables[BaseLanguage]; !ok {
		return nil, fmt.Errorf("base language %q is not defined", BaseLanguage)
	}

	langs := make([]string, 0, len(tables))
	for lang := range tables {
		if lang != BaseLanguage {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	langs = append([]string{BaseLanguage}, langs...)

	tags := make([]language.Tag, 0, len(langs))
	ordered := make([]*Table, 0, len(langs))
	for _, lang := range langs {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("parse language tag %q: %w", lang, err)
		}
		tags = append(tags, tag)
		ordered = append(ordered, tables[lang])
	}

	return &Bundle{
		tables:  tables,
		ordered: ordered,
		tags:    tags,
		matcher: language.NewMatcher(tags),
	}, nil
}

func parseCatalog(data []byte) (*Table, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	lang := strings.TrimSpace(file.Language)
	if lang == "" {
		return nil, fmt.Errorf("language is required")
	}

	rule := English
	if file.PluralForms != "" {
		parsed, err := ParsePluralForms(file.PluralForms)
		if err != nil {
			return nil, err
		}
		rule = parsed
	}

	for key, forms := range file.Plurals {
		if len(forms) != rule.NPlurals {
			return nil, fmt.Errorf("plural %q has %d forms, want %d", key, len(forms), rule.NPlurals)
		}
	}

	return NewTable(lang, rule, file.Translations, file.Plurals), nil
}

// Languages returns the available languages, base language first.
func (b *Bundle) Languages() []string {
	out := make([]string, 0, len(b.ordered))
	for _, t := range b.ordered {
		out = append(out, t.lang)
	}
	return out
}

// Table returns the table of lang.
func (b *Bundle) Table(lang string) (*Table, bool) {
	t, ok := b.tables[lang]
	return t, ok
}

// Base returns the base language table.
func (b *Bundle) Base() *Table {
	return b.tables[BaseLanguage]
}

// Match picks the table best matching an Accept-Language header value.
// Anything unparseable or unsupported yields the base language.
func (b *Bundle) Match(acceptLanguage string) *Table {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return b.Base()
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.Base()
	}

	_, idx, confidence := b.matcher.Match(tags...)
	if confidence == language.No {
		return b.Base()
	}
	return b.ordered[idx]
}

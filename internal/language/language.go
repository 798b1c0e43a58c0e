// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package language models viewer locales and the fallback chain used when a
// localized resource is missing.
//
// Every chain in a Catalog is finite and ends at the catalog's base language.
// NewCatalog enforces this so lookups never need cycle detection at runtime.
package language

import (
	"regexp"
	"slices"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
)

// DefaultBase is the locale every banner asset must exist for.
const DefaultBase = "en_US"

// CodePattern accepts "en", "en_US", "ast_ES". Catalog files are validated
// against the same expression.
const CodePattern = `^[a-z]{2,3}(_[A-Z]{2})?$`

var codePattern = regexp.MustCompile(CodePattern)

// ValidCode reports whether code is a well-formed language code.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Language is a locale and the locale to try when a resource is missing for it.
type Language struct {
	Code     string `yaml:"code" json:"code" jsonschema:"required"`
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// JSONSchemaExtend sets the code patterns. Struct tags can't carry them
// because the quantifiers contain commas.
func (Language) JSONSchemaExtend(s *jsonschema.Schema) {
	setPattern(s, "code")
	setPattern(s, "fallback")
}

func setPattern(s *jsonschema.Schema, property string) {
	if s.Properties == nil {
		return
	}
	if prop, ok := s.Properties.Get(property); ok && prop != nil {
		prop.Pattern = CodePattern
	}
}

// Catalog is an immutable set of languages rooted at a base language.
type Catalog struct {
	base      string
	languages map[string]Language
	chains    map[string][]string
}

// NewCatalog validates the languages and precomputes every fallback chain.
// Languages without a fallback implicitly fall back to base. The base language
// is added if it is not listed.
func NewCatalog(base string, languages []Language) (*Catalog, error) {
	if !ValidCode(base) {
		return nil, oops.Code("LANGUAGE_CATALOG_INVALID").
			With("code", base).
			Errorf("invalid base language code %q", base)
	}

	byCode := make(map[string]Language, len(languages)+1)
	for _, lang := range languages {
		if !ValidCode(lang.Code) {
			return nil, oops.Code("LANGUAGE_CATALOG_INVALID").
				With("code", lang.Code).
				Errorf("invalid language code %q", lang.Code)
		}
		if _, dup := byCode[lang.Code]; dup {
			return nil, oops.Code("LANGUAGE_CATALOG_INVALID").
				With("code", lang.Code).
				Errorf("language %q listed twice", lang.Code)
		}
		if lang.Code == base {
			if lang.Fallback != "" {
				return nil, oops.Code("LANGUAGE_CATALOG_INVALID").
					With("code", lang.Code).
					With("fallback", lang.Fallback).
					Errorf("base language %q cannot have a fallback", base)
			}
		} else if lang.Fallback == "" {
			lang.Fallback = base
		}
		byCode[lang.Code] = lang
	}
	if _, ok := byCode[base]; !ok {
		byCode[base] = Language{Code: base}
	}

	c := &Catalog{
		base:      base,
		languages: byCode,
		chains:    make(map[string][]string, len(byCode)),
	}
	for code := range byCode {
		chain, err := c.walk(code)
		if err != nil {
			return nil, err
		}
		c.chains[code] = chain
	}
	return c, nil
}

// walk follows fallbacks from code until base, rejecting dangling references
// and cycles.
func (c *Catalog) walk(code string) ([]string, error) {
	chain := []string{code}
	current := c.languages[code]
	for current.Code != c.base {
		next, ok := c.languages[current.Fallback]
		if !ok {
			return nil, oops.Code("LANGUAGE_CATALOG_INVALID").
				With("code", current.Code).
				With("fallback", current.Fallback).
				Errorf("language %q falls back to unknown language %q", current.Code, current.Fallback)
		}
		if slices.Contains(chain, next.Code) {
			return nil, oops.Code("LANGUAGE_CATALOG_INVALID").
				With("chain", append(chain, next.Code)).
				Errorf("fallback cycle starting at %q", code)
		}
		chain = append(chain, next.Code)
		current = next
	}
	return chain, nil
}

// Base returns the base language code.
func (c *Catalog) Base() string {
	return c.base
}

// Get returns the language registered under code.
func (c *Catalog) Get(code string) (Language, bool) {
	lang, ok := c.languages[code]
	return lang, ok
}

// Chain returns the ordered codes to try for code, ending with the base
// language. A well-formed code the catalog doesn't list is tried itself and
// then the base; a malformed one yields just the base language.
// The returned slice is a copy.
func (c *Catalog) Chain(code string) []string {
	chain, ok := c.chains[code]
	if ok {
		return slices.Clone(chain)
	}
	if ValidCode(code) {
		return []string{code, c.base}
	}
	return []string{c.base}
}

// Codes returns all registered language codes in sorted order.
func (c *Catalog) Codes() []string {
	codes := make([]string, 0, len(c.languages))
	for code := range c.languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Default returns the built-in catalog used when no catalog file is configured.
func Default() *Catalog {
	c, err := NewCatalog(DefaultBase, []Language{
		{Code: "en_US"},
		{Code: "en_GB", Fallback: "en_US"},
		{Code: "es_ES", Fallback: "en_US"},
		{Code: "ca_ES", Fallback: "es_ES"},
		{Code: "gl_ES", Fallback: "es_ES"},
		{Code: "eu_ES", Fallback: "es_ES"},
		{Code: "fr_FR", Fallback: "en_US"},
		{Code: "de_DE", Fallback: "en_US"},
		{Code: "pt_PT", Fallback: "en_US"},
		{Code: "pt_BR", Fallback: "pt_PT"},
	})
	if err != nil {
		panic("language.Default: " + err.Error())
	}
	return c
}

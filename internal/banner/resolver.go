// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package banner

import (
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/authlobby/internal/language"
)

// Asset is a resolved banner location.
type Asset struct {
	Key       Key
	Image     Image
	Language  string // language the asset was found under
	Requested string // language originally asked for
}

// FellBack reports whether the asset came from a fallback language.
func (a Asset) FellBack() bool {
	return a.Language != a.Requested
}

// Resolver finds the best asset for a language by walking its fallback chain.
type Resolver struct {
	store   *Store
	catalog *language.Catalog
}

// NewResolver creates a Resolver. Panics if store or catalog is nil.
func NewResolver(store *Store, catalog *language.Catalog) *Resolver {
	if store == nil {
		panic("banner.NewResolver: store is required")
	}
	if catalog == nil {
		panic("banner.NewResolver: catalog is required")
	}
	return &Resolver{store: store, catalog: catalog}
}

// Catalog returns the language catalog used for fallbacks.
func (r *Resolver) Catalog() *language.Catalog {
	return r.catalog
}

// Resolve returns the first asset for img along the fallback chain of lang.
//
// A missing localized asset is silently skipped. A stat failure other than
// "not found" stops the walk and is returned as BANNER_ASSET_READ_FAILED. If
// even the base language lacks the asset the packaging is broken and
// BANNER_ASSET_MISSING is returned. An empty lang means the base language.
func (r *Resolver) Resolve(lang string, img Image) (Asset, error) {
	if lang == "" {
		lang = r.catalog.Base()
	}
	if !img.Valid() {
		return Asset{}, oops.Code("BANNER_IMAGE_INVALID").
			With("image", int(img)).
			Errorf("invalid banner image")
	}

	chain := r.catalog.Chain(lang)
	for _, code := range chain {
		key := KeyFor(code, img)
		ok, err := r.store.Exists(key)
		if err != nil {
			return Asset{}, oops.With("language", lang).Wrap(err)
		}
		if ok {
			return Asset{Key: key, Image: img, Language: code, Requested: lang}, nil
		}
	}

	return Asset{}, oops.Code("BANNER_ASSET_MISSING").
		With("language", lang).
		With("image", img.String()).
		With("chain", chain).
		Errorf("no asset for %s along fallback chain %s", img, strings.Join(chain, " -> "))
}

// Verify checks that the base language has an asset for every image.
// All missing keys are reported together.
func (r *Resolver) Verify() error {
	base := r.catalog.Base()
	var missing []string
	for _, img := range Images() {
		key := KeyFor(base, img)
		ok, err := r.store.Exists(key)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, string(key))
		}
	}
	if len(missing) > 0 {
		return oops.Code("BANNER_ASSET_MISSING").
			With("base_language", base).
			With("missing", missing).
			Errorf("base language %s is missing banner assets: %s", base, strings.Join(missing, ", "))
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package banner

// Key is the asset-store name of a localized banner.
type Key string

// KeyFor composes "<language-code>-<IMAGE_NAME>". The format is shared with
// asset packaging and must stay bit-exact.
func KeyFor(languageCode string, img Image) Key {
	return Key(languageCode + "-" + img.String())
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package banner selects, localizes and renders the authentication banners
// shown on the lobby surface.
//
// A banner asset is a single image file stored under the key
// "<language-code>-<IMAGE_NAME>" (for example "es_ES-LOGIN"). Lookups walk the
// viewer's language fallback chain until a key exists; the base language must
// carry every Image, which Resolver.Verify checks at startup.
package banner

import (
	"github.com/samber/oops"

	"github.com/holomush/authlobby/internal/session"
)

// Image identifies one banner.
type Image uint8

// Banner images. The names returned by String are part of the asset key and
// must not change.
const (
	ImageLogin Image = iota + 1
	ImageRegister
	ImageChangePassword
	ImageLoginWrongPassword
	ImageRegisterPasswordsDontMatch
	ImageChangePasswordPasswordsDontMatch
	ImageConfirmPassword
)

var imageNames = [...]string{
	ImageLogin:                            "LOGIN",
	ImageRegister:                         "REGISTER",
	ImageChangePassword:                   "CHANGE_PASSWORD",
	ImageLoginWrongPassword:               "LOGIN_WRONG_PASSWORD",
	ImageRegisterPasswordsDontMatch:       "REGISTER_PASSWORDS_DONT_MATCH",
	ImageChangePasswordPasswordsDontMatch: "CHANGE_PASSWORD_PASSWORDS_DONT_MATCH",
	ImageConfirmPassword:                  "CONFIRM_PASSWORD",
}

func (i Image) String() string {
	if i == 0 || int(i) >= len(imageNames) {
		return "UNKNOWN"
	}
	return imageNames[i]
}

// Valid reports whether i is one of the declared images.
func (i Image) Valid() bool {
	return i != 0 && int(i) < len(imageNames)
}

// Images returns every banner image in declaration order.
func Images() []Image {
	out := make([]Image, 0, len(imageNames)-1)
	for i := ImageLogin; int(i) < len(imageNames); i++ {
		out = append(out, i)
	}
	return out
}

// ParseImage returns the image with the given asset name.
func ParseImage(name string) (Image, error) {
	for _, img := range Images() {
		if img.String() == name {
			return img, nil
		}
	}
	return 0, oops.Code("BANNER_IMAGE_INVALID").
		With("image", name).
		Errorf("unknown banner image %q", name)
}

// EntryImage maps the state a viewer enters the lobby in to its first banner.
// Only LOGIN, REGISTER and CHANGE_PASSWORD sessions are ever shown the lobby.
func EntryImage(state session.State) (Image, bool) {
	switch state {
	case session.StateLogin:
		return ImageLogin, true
	case session.StateRegister:
		return ImageRegister, true
	case session.StateChangePassword:
		return ImageChangePassword, true
	case session.StateUnknown, session.StatePremiumCheck, session.StateAuthenticated:
		return 0, false
	}
	return 0, false
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/authlobby/pkg/errutil"
)

func TestAssertErrorCode(t *testing.T) {
	err := oops.Code("BANNER_ASSET_MISSING").With("key", "en_US-LOGIN").Errorf("missing")
	errutil.AssertErrorCode(t, err, "BANNER_ASSET_MISSING")
}

func TestAssertErrorCode_Wrapped(t *testing.T) {
	inner := oops.Code("CONFIG_INVALID").Errorf("bad value")
	err := oops.With("path", "authlobby.yaml").Wrap(inner)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.Code("CONFIG_INVALID").With("field", "world.time").Errorf("out of range")
	errutil.AssertErrorContext(t, err, "field", "world.time")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package banner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BannerRenders counts banners drawn for a viewer.
// Use RegisterMetrics to register this with a Prometheus registry.
var BannerRenders = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authlobby_banner_renders_total",
		Help: "Total number of banners rendered by image and resolved language",
	},
	[]string{"image", "language"},
)

// OtherLanguage is the language label for codes outside the catalog.
const OtherLanguage = "other"

// BannerFallbacks counts resolutions that had to leave the requested language.
var BannerFallbacks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authlobby_banner_fallbacks_total",
		Help: "Total number of banner lookups served by a fallback language",
	},
	[]string{"requested", "resolved"},
)

// BannerFailures counts renders that ended with the viewer being disconnected.
var BannerFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authlobby_banner_failures_total",
		Help: "Total number of presenter failures by error code",
	},
	[]string{"code"},
)

// CuesPlayed counts feedback cues by kind.
var CuesPlayed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authlobby_cues_played_total",
		Help: "Total number of feedback cues played by kind",
	},
	[]string{"kind"},
)

// RegisterMetrics registers banner metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(BannerRenders)
	reg.MustRegister(BannerFallbacks)
	reg.MustRegister(BannerFailures)
	reg.MustRegister(CuesPlayed)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package banner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/authlobby/internal/host"
	"github.com/holomush/authlobby/internal/session"
	"github.com/holomush/authlobby/pkg/errutil"
)

var tracer = otel.Tracer("authlobby/banner")

// Disconnect reasons shown to the viewer.
const (
	ReasonUnsupportedState = "There was an error. Please contact with us."
	ReasonRenderFailed     = "There was an error. Please try again."
)

// Cue kinds used as metric labels.
const (
	CuePositive = "positive"
	CueNegative = "negative"
)

// Cues are the feedback sounds played on success and failure.
type Cues struct {
	Positive host.Cue `koanf:"positive"`
	Negative host.Cue `koanf:"negative"`
}

// DefaultCues are the experience-orb pickup and note-block bass sounds.
var DefaultCues = Cues{
	Positive: host.Cue{Sound: "entity.experience_orb.pickup", Volume: 1, Pitch: 0},
	Negative: host.Cue{Sound: "block.note_block.bass", Volume: 1, Pitch: 0},
}

// Presenter reacts to session-flow events by drawing banners and playing cues.
//
// Presenter keeps no per-viewer state and is not safe for concurrent use; the
// lobby calls it from a single event loop.
type Presenter struct {
	viewers  host.Viewers
	resolver *Resolver
	surface  *Surface
	anchor   host.AnchorID
	cues     Cues
	logger   *slog.Logger
}

// PresenterOption configures a Presenter during construction.
type PresenterOption func(*Presenter)

// WithCues overrides the feedback sounds.
func WithCues(cues Cues) PresenterOption {
	return func(p *Presenter) {
		p.cues = cues
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) PresenterOption {
	return func(p *Presenter) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPresenter creates a Presenter drawing on surface for viewers pinned to anchor.
func NewPresenter(viewers host.Viewers, resolver *Resolver, surface *Surface, anchor host.AnchorID, opts ...PresenterOption) (*Presenter, error) {
	if viewers == nil {
		return nil, oops.Code("PRESENTER_INVALID").Errorf("viewers capability is required")
	}
	if resolver == nil {
		return nil, oops.Code("PRESENTER_INVALID").Errorf("resolver is required")
	}
	if surface == nil {
		return nil, oops.Code("PRESENTER_INVALID").Errorf("surface is required")
	}
	if anchor == "" {
		return nil, oops.Code("PRESENTER_INVALID").Errorf("anchor is required")
	}
	p := &Presenter{
		viewers:  viewers,
		resolver: resolver,
		surface:  surface,
		anchor:   anchor,
		cues:     DefaultCues,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// OnViewerEntered pins the viewer to the view lock and shows the banner for
// the state the session entered the lobby in. Sessions in any other state are
// an integration bug: the viewer is disconnected and SESSION_STATE_UNSUPPORTED
// is returned.
func (p *Presenter) OnViewerEntered(ctx context.Context, viewer host.ViewerID, sess *session.Session) error {
	state := session.StateUnknown
	if sess != nil {
		state = sess.State
	}
	img, ok := EntryImage(state)
	if !ok {
		err := oops.Code("SESSION_STATE_UNSUPPORTED").
			With("viewer", string(viewer)).
			With("state", state.String()).
			Errorf("session state on entry wasn't expected: %s", state)
		p.fail(ctx, viewer, ReasonUnsupportedState, err)
		return err
	}

	if err := p.viewers.Spectate(ctx, viewer, p.anchor); err != nil {
		err = oops.Code("VIEWER_PIN_FAILED").
			With("viewer", string(viewer)).
			Wrapf(err, "pin viewer to view lock")
		p.fail(ctx, viewer, ReasonRenderFailed, err)
		return err
	}
	return p.show(ctx, viewer, languageOf(sess), img)
}

// OnCredentialAccepted plays the positive cue. The banner is left as is.
func (p *Presenter) OnCredentialAccepted(ctx context.Context, viewer host.ViewerID) error {
	return p.cue(ctx, viewer, CuePositive)
}

// OnCredentialRejected plays the negative cue and shows LOGIN_WRONG_PASSWORD.
func (p *Presenter) OnCredentialRejected(ctx context.Context, viewer host.ViewerID, sess *session.Session) error {
	cueErr := p.cue(ctx, viewer, CueNegative)
	if err := p.show(ctx, viewer, languageOf(sess), ImageLoginWrongPassword); err != nil {
		return err
	}
	return cueErr
}

// OnPasswordEntered plays the positive cue and asks for confirmation.
func (p *Presenter) OnPasswordEntered(ctx context.Context, viewer host.ViewerID, sess *session.Session) error {
	cueErr := p.cue(ctx, viewer, CuePositive)
	if err := p.show(ctx, viewer, languageOf(sess), ImageConfirmPassword); err != nil {
		return err
	}
	return cueErr
}

// OnPasswordMismatch plays the negative cue and shows the mismatch banner for
// either the change-password or the register flow.
func (p *Presenter) OnPasswordMismatch(ctx context.Context, viewer host.ViewerID, sess *session.Session, changingPassword bool) error {
	img := ImageRegisterPasswordsDontMatch
	if changingPassword {
		img = ImageChangePasswordPasswordsDontMatch
	}
	cueErr := p.cue(ctx, viewer, CueNegative)
	if err := p.show(ctx, viewer, languageOf(sess), img); err != nil {
		return err
	}
	return cueErr
}

// languageOf returns the session's language, or "" (the base language) when
// there is no session.
func languageOf(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.User.Language
}

// cue plays a feedback sound. A failed cue is logged and reported but never
// stops the banner from being drawn or disconnects the viewer.
func (p *Presenter) cue(ctx context.Context, viewer host.ViewerID, kind string) error {
	c := p.cues.Positive
	if kind == CueNegative {
		c = p.cues.Negative
	}
	if err := p.viewers.PlayCue(ctx, viewer, c); err != nil {
		p.logger.WarnContext(ctx, "failed to play cue",
			"viewer", string(viewer),
			"cue", kind,
			"sound", c.Sound,
			"error", err)
		return oops.Code("CUE_FAILED").
			With("viewer", string(viewer)).
			With("cue", kind).
			Wrap(err)
	}
	CuesPlayed.WithLabelValues(kind).Inc()
	return nil
}

// show resolves, decodes and draws img for viewer. Any failure disconnects
// the viewer rather than leaving a stale banner on screen.
func (p *Presenter) show(ctx context.Context, viewer host.ViewerID, lang string, img Image) (err error) {
	ctx, span := tracer.Start(ctx, "banner.show",
		trace.WithAttributes(
			attribute.String("viewer.id", string(viewer)),
			attribute.String("banner.image", img.String()),
			attribute.String("banner.language", lang),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	asset, err := p.resolver.Resolve(lang, img)
	if err != nil {
		// A missing base asset means the banners were packaged wrong. Startup
		// verification should have caught it, so shout.
		err = oops.With("viewer", string(viewer)).Wrap(err)
		p.fail(ctx, viewer, ReasonRenderFailed, err)
		return err
	}
	span.SetAttributes(attribute.String("banner.key", string(asset.Key)))
	if asset.FellBack() {
		BannerFallbacks.WithLabelValues(p.languageLabel(asset.Requested), p.languageLabel(asset.Language)).Inc()
		p.logger.DebugContext(ctx, "banner served from fallback language",
			"viewer", string(viewer),
			"image", img.String(),
			"requested", asset.Requested,
			"resolved", asset.Language)
	}

	if err = p.draw(ctx, viewer, asset); err != nil {
		p.fail(ctx, viewer, ReasonRenderFailed, err)
		return err
	}
	BannerRenders.WithLabelValues(img.String(), p.languageLabel(asset.Language)).Inc()
	return nil
}

func (p *Presenter) draw(ctx context.Context, viewer host.ViewerID, asset Asset) error {
	data, err := p.resolver.store.Read(asset.Key)
	if err != nil {
		return oops.With("viewer", string(viewer)).Wrap(err)
	}
	frame, err := p.surface.Rasterize(data)
	if err != nil {
		return oops.With("viewer", string(viewer)).
			With("key", string(asset.Key)).
			Wrap(err)
	}
	if err := p.viewers.Render(ctx, viewer, frame); err != nil {
		return oops.Code("BANNER_RENDER_FAILED").
			With("viewer", string(viewer)).
			With("key", string(asset.Key)).
			Wrapf(err, "render to viewer")
	}
	return nil
}

// fail logs err, counts it and disconnects the viewer with reason.
func (p *Presenter) fail(ctx context.Context, viewer host.ViewerID, reason string, err error) {
	code := errutil.Code(err)
	BannerFailures.WithLabelValues(code).Inc()
	errutil.LogError(p.logger, fmt.Sprintf("banner presenter failed for viewer %s", viewer), err)

	if dErr := p.viewers.Disconnect(ctx, viewer, reason); dErr != nil {
		p.logger.ErrorContext(ctx, "failed to disconnect viewer",
			"viewer", string(viewer),
			"reason", reason,
			"error", dErr)
	}
}

// languageLabel keeps metric cardinality bounded: viewers report whatever
// locale their client sends, so codes outside the catalog share one series.
func (p *Presenter) languageLabel(code string) string {
	if _, ok := p.resolver.Catalog().Get(code); ok {
		return code
	}
	return OtherLanguage
}

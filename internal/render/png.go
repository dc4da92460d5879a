package render

import (
	"bytes"
	"crypto/sha256"
	"image"
	"image/color"
	"image/png"

	"notecrumbs/internal/types"
)

// Share-card dimensions (spec.md §6: "image/png, 1200×630").
const (
	cardWidth  = 1200
	cardHeight = 630
)

// PNGRenderer produces the 1200x630 share-card artifact. Avatar
// compositing and typography are out of scope (spec.md Non-goals) — the
// card is a deterministic per-author gradient background, grounded on
// original_source/gradient.rs's linear-interpolation approach, adapted
// from egui's Color32 lerp to stdlib image/color.
type PNGRenderer struct{}

func NewPNGRenderer() *PNGRenderer { return &PNGRenderer{} }

// RenderProfileCard builds a share card for a profile payload.
func (r *PNGRenderer) RenderProfileCard(payload types.ProfilePayload) ([]byte, error) {
	return r.render(payload.Pubkey)
}

// RenderNoteCard builds a share card for a note payload, seeded off the
// author's pubkey so every card for the same author shares a background.
func (r *PNGRenderer) RenderNoteCard(payload types.NotePayload) ([]byte, error) {
	return r.render(payload.Event.PubKey)
}

func (r *PNGRenderer) render(seed string) ([]byte, error) {
	left, right := gradientEndpoints(seed)
	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	for x := 0; x < cardWidth; x++ {
		t := float64(x) / float64(cardWidth-1)
		c := lerpColor(left, right, t)
		for y := 0; y < cardHeight; y++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, wrapRenderErr(err)
	}
	return buf.Bytes(), nil
}

// gradientEndpoints derives two deterministic colors from seed's hash, so
// the same pubkey always produces the same card background (gradient.rs's
// Gradient::linear, reseeded per-author instead of taking fixed endpoints).
func gradientEndpoints(seed string) (color.RGBA, color.RGBA) {
	sum := sha256.Sum256([]byte(seed))
	left := color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 255}
	right := color.RGBA{R: sum[16], G: sum[17], B: sum[18], A: 255}
	return left, right
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerpByte(a.R, b.R, t),
		G: lerpByte(a.G, b.G, t),
		B: lerpByte(a.B, b.B, t),
		A: 255,
	}
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

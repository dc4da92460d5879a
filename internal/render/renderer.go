package render

import "notecrumbs/internal/types"

// Renderer is what internal/httpapi depends on: produce bytes for one of
// the three artifact kinds from an assembled payload. Each method delegates
// to HTMLRenderer, PNGRenderer, or the package-level RenderNoteJSON.
type Renderer struct {
	HTML *HTMLRenderer
	PNG  *PNGRenderer
}

// New builds the full renderer set. baseURL feeds the HTML canonical links.
func New(baseURL string) *Renderer {
	return &Renderer{
		HTML: NewHTMLRenderer(baseURL),
		PNG:  NewPNGRenderer(),
	}
}

// RenderProfileHTML, RenderNoteHTML, RenderProfilePNG, RenderNotePNG, and
// RenderNoteJSON are the dispatcher's five entry points (spec.md §4.6 step
// 6 "hand payload to renderer").
func (r *Renderer) RenderProfileHTML(payload types.ProfilePayload) ([]byte, error) {
	return r.HTML.RenderProfile(payload)
}

func (r *Renderer) RenderNoteHTML(payload types.NotePayload) ([]byte, error) {
	return r.HTML.RenderNote(payload)
}

func (r *Renderer) RenderProfilePNG(payload types.ProfilePayload) ([]byte, error) {
	return r.PNG.RenderProfileCard(payload)
}

func (r *Renderer) RenderNotePNG(payload types.NotePayload) ([]byte, error) {
	return r.PNG.RenderNoteCard(payload)
}

func (r *Renderer) RenderNoteJSON(payload types.NotePayload) ([]byte, error) {
	return RenderNoteJSON(payload)
}

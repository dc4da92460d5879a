package httpapi

import (
	"context"
	"net/http"
	"strings"

	"notecrumbs/internal/metrics"
	"notecrumbs/internal/nip19"
	"notecrumbs/internal/types"
)

// artifactKind distinguishes which renderer family a decoded reference
// belongs to, independent of the requested suffix.
type artifactKind int

const (
	artifactProfile artifactKind = iota
	artifactNote
)

// artifactHandler implements the dispatch steps of spec.md §4.6: decode the
// path into a reference + suffix, assemble from the store (blocking on the
// primary fetch if the object is missing), then hand the payload to the
// matching renderer.
func (s *Server) artifactHandler(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/")
	bech, suffix := splitSuffix(raw)

	ref, err := nip19.DecodeReference(bech)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ref.Suffix = suffix

	kind := refArtifactKind(ref)
	if suffix == "json" && kind != artifactNote {
		http.NotFound(w, r)
		return
	}

	if cached, ok := s.cacheGet(r, raw); ok {
		writeArtifact(w, suffix, cached)
		metrics.CacheHitsTotal.Add(1)
		return
	}
	metrics.CacheMissesTotal.Add(1)

	ctx, cancel := s.requestContext(r)
	defer cancel()

	var body []byte
	switch kind {
	case artifactProfile:
		payload, err := s.assembler.AssembleProfile(ctx, ref.Pubkey, ref.RelayHints)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body, err = s.renderProfile(suffix, payload)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	case artifactNote:
		payload, err := s.resolveNote(ctx, ref)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body, err = s.renderNote(suffix, payload)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	s.cacheSet(r, raw, body)
	writeArtifact(w, suffix, body)
}

func (s *Server) resolveNote(ctx context.Context, ref types.Reference) (types.NotePayload, error) {
	if ref.Kind == types.RefCoordinate {
		return s.assembler.AssembleNoteByCoordinate(ctx, ref.EventKind, ref.Author, ref.Identifier, ref.RelayHints)
	}
	return s.assembler.AssembleNote(ctx, ref.EventID, ref.RelayHints)
}

func (s *Server) renderProfile(suffix string, payload types.ProfilePayload) ([]byte, error) {
	switch suffix {
	case "png":
		return s.renderer.RenderProfilePNG(payload)
	default:
		return s.renderer.RenderProfileHTML(payload)
	}
}

func (s *Server) renderNote(suffix string, payload types.NotePayload) ([]byte, error) {
	switch suffix {
	case "png":
		return s.renderer.RenderNotePNG(payload)
	case "json":
		return s.renderer.RenderNoteJSON(payload)
	default:
		return s.renderer.RenderNoteHTML(payload)
	}
}

func refArtifactKind(ref types.Reference) artifactKind {
	switch ref.Kind {
	case types.RefPubkey, types.RefProfile:
		return artifactProfile
	default:
		return artifactNote
	}
}

// splitSuffix strips a trailing ".png" or ".json" from a bech32 path
// component, returning the bare reference string and the suffix ("" for
// plain HTML).
func splitSuffix(raw string) (bech string, suffix string) {
	switch {
	case strings.HasSuffix(raw, ".png"):
		return strings.TrimSuffix(raw, ".png"), "png"
	case strings.HasSuffix(raw, ".json"):
		return strings.TrimSuffix(raw, ".json"), "json"
	default:
		return raw, ""
	}
}

func writeArtifact(w http.ResponseWriter, suffix string, body []byte) {
	switch suffix {
	case "png":
		w.Header().Set("Content-Type", "image/png")
	case "json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Header().Set("Cache-Control", "public, max-age=30")
	w.Write(body)
}

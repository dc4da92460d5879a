package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"notecrumbs/internal/metrics"
	"notecrumbs/internal/nip19"
	"notecrumbs/internal/types"
)

const homepageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>notecrumbs</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
<h1>notecrumbs</h1>
<p>A rendering gateway for Nostr references. Paste an npub, note, nprofile,
nevent, or naddr after the slash to see its hypermedia preview — append
<code>.png</code> for a share card or <code>.json</code> for the raw
parsed note.</p>
</body>
</html>
`

func (s *Server) homeHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(homepageHTML))
}

func (s *Server) robotsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "User-agent: *\nAllow: /\nSitemap: %s/sitemap.xml\n", strings.TrimSuffix(s.cfg.BaseURL, "/"))
}

// sitemapRecentLimit caps how many recently-seen notes appear in the
// generated sitemap (original_source/src/sitemap.rs's capped recent-ids
// list — the distilled spec names the route but not the generation rule).
const sitemapRecentLimit = 200

func (s *Server) sitemapHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")

	events, err := s.store.Query(r.Context(), types.Filter{Kinds: []int{types.KindNote}, Limit: sitemapRecentLimit})
	if err != nil {
		events = nil
	}

	base := strings.TrimSuffix(s.cfg.BaseURL, "/")
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n"))
	w.Write([]byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n"))
	fmt.Fprintf(w, "  <url><loc>%s/</loc></url>\n", base)
	for _, e := range events {
		bech, err := nip19.EncodeEventID(e.ID)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  <url><loc>%s/%s</loc><lastmod>%s</lastmod></url>\n",
			base, bech, time.Unix(e.CreatedAt, 0).UTC().Format(time.RFC3339))
	}
	w.Write([]byte(`</urlset>` + "\n"))
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	status := "ok"
	connections := s.pool.ConnectionCount()
	if connections == 0 && metrics.Uptime() > time.Minute {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	resp := map[string]any{
		"status":          status,
		"uptime_seconds":  int64(metrics.Uptime().Seconds()),
		"relay_connections": connections,
		"http_requests_total": metrics.HTTPRequestsTotal.Load(),
		"http_errors_total":   metrics.HTTPErrorsTotal.Load(),
	}
	json.NewEncoder(w).Encode(resp)
}

// staticAssetHandler serves /damus.css, /fonts/*, /assets/* from the
// ./static directory (relative to the working directory), grounded on the teacher's staticFileHandler
// (path-traversal guard plus content-type-by-extension).
func (s *Server) staticAssetHandler(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.URL.Path, "..") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, "static"+r.URL.Path)
}

package httpapi

import "net/http"

// cacheGet reads a previously rendered artifact. A nil cache (no backend
// configured) always misses.
func (s *Server) cacheGet(r *http.Request, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	body, ok, err := s.cache.Get(r.Context(), key)
	if err != nil {
		return nil, false
	}
	return body, ok
}

func (s *Server) cacheSet(r *http.Request, key string, body []byte) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(r.Context(), key, body, renderCacheTTL)
}

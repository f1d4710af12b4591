package relay

import (
	"net/http"

	"github.com/fpang/instagram-relay/internal/instagram"
)

// Graph API passthrough routes. Each returns the upstream status and JSON
// body unchanged; only missing parameters and transport failures produce
// relay-generated errors.

func (s *Server) handleIDs(w http.ResponseWriter, r *http.Request) {
	token, ok := s.accessToken(w, r)
	if !ok {
		return
	}
	resp, err := s.graph.Me(r.Context(), token)
	relayUpstream(w, "me", resp, err)
}

func (s *Server) handleUserInsights(w http.ResponseWriter, r *http.Request) {
	token, ok := s.accessToken(w, r)
	if !ok {
		return
	}
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}
	resp, err := s.graph.UserInsights(r.Context(), accountID, token)
	relayUpstream(w, "user insights", resp, err)
}

func (s *Server) handleMediaInsights(w http.ResponseWriter, r *http.Request) {
	token, ok := s.accessToken(w, r)
	if !ok {
		return
	}
	mediaID := r.URL.Query().Get("media_id")
	if mediaID == "" {
		httpError(w, http.StatusBadRequest, "media_id is required")
		return
	}
	mediaType, err := instagram.ParseMediaType(r.URL.Query().Get("media_type"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.graph.MediaInsights(r.Context(), mediaID, mediaType, token)
	relayUpstream(w, "media insights", resp, err)
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	token, ok := s.accessToken(w, r)
	if !ok {
		return
	}
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}
	resp, err := s.graph.ListMedia(r.Context(), accountID, token)
	relayUpstream(w, "list media", resp, err)
}

// accessToken returns the access_token query parameter or the configured
// default, writing a 400 when neither is set.
func (s *Server) accessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	return queryOrDefault(w, r, "access_token", s.cfg.Instagram.AccessToken)
}

// accountID returns the account_id query parameter or the configured user ID.
func (s *Server) accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return queryOrDefault(w, r, "account_id", s.cfg.Instagram.UserID)
}

func queryOrDefault(w http.ResponseWriter, r *http.Request, name, def string) (string, bool) {
	if v := r.URL.Query().Get(name); v != "" {
		return v, true
	}
	if def != "" {
		return def, true
	}
	httpError(w, http.StatusBadRequest, name+" is required")
	return "", false
}

func relayUpstream(w http.ResponseWriter, op string, resp *instagram.Response, err error) {
	if err != nil {
		httpError(w, http.StatusBadGateway, "Instagram API unavailable", op+": "+err.Error())
		return
	}
	respondRaw(w, resp.Status, resp.Body)
}

package relay

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Instagram Relay</title>
  <style>
    body { font-family: system-ui, -apple-system, sans-serif; max-width: 900px; margin: 40px auto; padding: 0 20px; color: #1a1a1a; }
    pre { background: #f5f5f5; padding: 16px; overflow-x: auto; font-size: 0.85rem; }
  </style>
</head>
<body>
  <a href="{{.AuthorizeURL}}">Connect Instagram</a>
  <p>{{.Count}} of {{.Capacity}} retained webhook updates, most recent first.</p>
  <pre>{{.Updates}}</pre>
</body>
</html>
`))

type indexPage struct {
	AuthorizeURL string
	Count        int
	Capacity     int
	Updates      string
}

// handleIndex renders the Connect link and the retained updates. Payloads
// come from the network, so they only ever reach the page through
// html/template escaping.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snapshot := s.updates.Snapshot()
	payloads := make([]json.RawMessage, len(snapshot))
	for i, u := range snapshot {
		payloads[i] = u.Payload
	}

	// The template escapes; the encoder must not do it a second time.
	var pretty bytes.Buffer
	enc := json.NewEncoder(&pretty)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payloads); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to render updates", err.Error())
		return
	}

	var buf bytes.Buffer
	err := indexTmpl.Execute(&buf, indexPage{
		AuthorizeURL: s.oauth.AuthorizeURL(),
		Count:        len(snapshot),
		Capacity:     s.updates.Cap(),
		Updates:      pretty.String(),
	})
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to render page", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Msg("Failed to write index page")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "API is running smoothly",
	})
}

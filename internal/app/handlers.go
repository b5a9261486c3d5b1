package app

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/MrEthical07/goSession/session"
)

const entriesKey = "entries"

var entriesPage = template.Must(template.New("entries").Parse(`<html>
<head>
    <title>Sessions example</title>
</head>
<body>
<form action="/" method="post">
<textarea rows="15" cols="60" name="entry">Text entered here will be saved in the session</textarea>
<br>
<input type="submit" value="submit">
</form>
<hr>
{{if .}}
<strong>Here's what you've entered so far:</strong>
<ul>{{range .}}
  <li>{{.}}</li>
{{end}}</ul>
<form action="/clear" method="post">
<input type="submit" value="clear">
</form>
{{end}}
</body>
</html>
`))

func (a *App) showEntries(w http.ResponseWriter, r *http.Request, s *session.Session) {
	entries, err := loadEntries(r, s)
	if err != nil {
		a.log.Warn("read entries", "session_id", s.ID(), "error", err)
	}
	a.render(w, entries)
}

func (a *App) addEntry(w http.ResponseWriter, r *http.Request, s *session.Session) {
	entries, err := loadEntries(r, s)
	if err != nil {
		a.log.Warn("read entries", "session_id", s.ID(), "error", err)
	}

	entry := r.FormValue("entry")
	if entry == "" {
		http.Error(w, "missing entry", http.StatusBadRequest)
		return
	}
	entries = append(entries, entry)

	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = e
	}
	if err := s.Set(entriesKey, list); err != nil {
		http.Error(w, "could not store entry", http.StatusInternalServerError)
		return
	}
	a.render(w, entries)
}

func (a *App) clearEntries(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := s.Clear(r.Context()); err != nil {
		a.log.Error("clear session", "session_id", s.ID(), "error", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) ready(w http.ResponseWriter, r *http.Request) {
	latency, err := a.engine.Ping(r.Context())
	if err != nil {
		http.Error(w, "session backend unavailable", http.StatusServiceUnavailable)
		return
	}
	_, _ = fmt.Fprintf(w, "ok %s\n", latency)
}

func (a *App) render(w http.ResponseWriter, entries []string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := entriesPage.Execute(w, entries); err != nil {
		a.log.Error("render entries", "error", err)
	}
}

// loadEntries reads the stored list. A missing or unreadable value yields
// an empty list alongside the error.
func loadEntries(r *http.Request, s *session.Session) ([]string, error) {
	raw, err := s.Get(r.Context(), entriesKey, nil)
	if err != nil {
		return nil, err
	}
	list, _ := raw.([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

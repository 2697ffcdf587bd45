package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/saaga0h/doorpi/internal/doorlog"
)

//go:embed templates/*.html
var templateFiles embed.FS

const lastChangeLayout = "2006-01-02 15:04:05"

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(templateFiles, "templates/*.html")
}

type statusView struct {
	Known      bool
	Status     string
	Image      string
	LastChange string
}

type indexView struct {
	statusView
	Location string
	Monday   string
	Hours    []int
	Days     []Day
}

func (s *Server) statusView(st doorlog.Status) statusView {
	if !st.Known {
		return statusView{Status: "unknown"}
	}
	name := "open"
	if st.Closed {
		name = "closed"
	}
	return statusView{
		Known:      true,
		Status:     name,
		Image:      fmt.Sprintf("static/eyes_%s.png", name),
		LastChange: st.Since().In(s.loc).Format(lastChangeLayout),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	location := s.cfg.DoorLocation

	st, err := s.status.Current(ctx, location)
	if err != nil {
		s.serverError(w, r, "Failed to load door status", err)
		return
	}

	monday, next := weekBounds(s.now(), s.loc)
	est, err := s.estimator.Estimate(ctx, location, monday, next, hoursPerDay*daysPerWeek, s.policy)
	if err != nil {
		s.serverError(w, r, "Failed to estimate occupancy", err)
		return
	}

	hours := make([]int, hoursPerDay)
	for i := range hours {
		hours[i] = i
	}

	view := indexView{
		statusView: s.statusView(st),
		Location:   location,
		Monday:     monday.Format("2006-01-02"),
		Hours:      hours,
		Days:       heatmap(est.Slots, monday, markerLabel(s.marker)),
	}
	s.render(w, r, "index.html", view)
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	st, err := s.status.Current(r.Context(), s.cfg.DoorLocation)
	if err != nil {
		s.serverError(w, r, "Failed to load door status", err)
		return
	}
	s.render(w, r, "embed.html", s.statusView(st))
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	st, err := s.status.Current(r.Context(), s.cfg.DoorLocation)
	if err != nil {
		s.serverError(w, r, "Failed to load door status", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, statusText(st, s.loc))
}

func statusText(st doorlog.Status, loc *time.Location) string {
	if !st.Known {
		return "Status unknown"
	}
	word := "Open"
	if st.Closed {
		word = "Closed"
	}
	return fmt.Sprintf("%s since %s", word, st.Since().In(loc).Format(lastChangeLayout))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render template",
			"template", name,
			"request_id", requestIDFrom(r.Context()),
			"error", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

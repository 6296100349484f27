package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"brainboard/pkg/assist"
	"brainboard/pkg/task"
	"brainboard/pkg/timegrid"
)

// taskFromSpec maps an extracted spec to a store-ready partial task.
func taskFromSpec(spec assist.TaskSpec) task.Task {
	return task.Task{
		Title:        spec.Title,
		Description:  spec.Description,
		TimeEstimate: spec.Minutes,
	}
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	weekStart := timegrid.StartOfWeek(time.Now())
	if q := r.URL.Query().Get("week"); q != "" {
		day, err := timegrid.ParseDayID(q)
		if err != nil {
			writeError(w, 400, "invalid week: "+q)
			return
		}
		weekStart = timegrid.StartOfWeek(day)
	}
	writeJSON(w, 200, map[string]any{
		"weekStart": timegrid.DayID(weekStart),
		"days":      s.store.Week(weekStart),
		"brainDump": orEmpty(s.store.Unscheduled()),
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, 503, "calendar import not configured")
		return
	}
	from, to, ok := decodeRange(w, r)
	if !ok {
		return
	}
	added, err := s.importer.Import(r.Context(), from, to)
	if err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, map[string]int{"imported": added})
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, 503, "remote sync not configured")
		return
	}
	if err := s.engine.Resync(r.Context()); err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, map[string]int{"tasks": s.store.Len()})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, 503, "transcription not configured")
		return
	}
	audio, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, 400, "read audio: "+err.Error())
		return
	}
	text, err := s.transcriber.Transcribe(r.Context(), audio, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, map[string]string{"text": text})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		Add  bool   `json:"add"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, 400, "text is required")
		return
	}
	specs, err := assist.ExtractTasks(r.Context(), req.Text)
	if err != nil {
		writeError(w, 502, err.Error())
		return
	}
	if req.Add {
		for _, spec := range specs {
			s.store.Add(taskFromSpec(spec))
		}
	}
	writeJSON(w, 200, map[string]any{"tasks": specs, "added": req.Add})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := decodeRange(w, r)
	if !ok {
		return
	}
	summary, err := assist.Summarize(r.Context(), s.store.All(), from, to)
	if err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, map[string]string{"summary": summary})
}

// decodeRange reads a {"from","to"} day-ID body, defaulting to the current
// week.
func decodeRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return time.Time{}, time.Time{}, false
	}
	from := timegrid.StartOfWeek(time.Now())
	to := timegrid.AddWeeks(from, 1)
	if req.From != "" {
		day, err := timegrid.ParseDayID(req.From)
		if err != nil {
			writeError(w, 400, "invalid from: "+req.From)
			return time.Time{}, time.Time{}, false
		}
		from = day
	}
	if req.To != "" {
		day, err := timegrid.ParseDayID(req.To)
		if err != nil {
			writeError(w, 400, "invalid to: "+req.To)
			return time.Time{}, time.Time{}, false
		}
		to = day
	}
	return from, to, true
}

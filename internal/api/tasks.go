package api

import (
	"encoding/json"
	"net/http"

	"brainboard/pkg/task"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("filter") == "unscheduled" {
		writeJSON(w, 200, orEmpty(s.store.Unscheduled()))
		return
	}
	if day := r.URL.Query().Get("day"); day != "" {
		writeJSON(w, 200, orEmpty(s.store.ByDay(day)))
		return
	}
	writeJSON(w, 200, orEmpty(s.store.All()))
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         string   `json:"title"`
		Description   string   `json:"description"`
		TimeEstimate  int      `json:"timeEstimate"`
		Priority      string   `json:"priority"`
		ScheduledDate string   `json:"scheduledDate"`
		ScheduledTime string   `json:"scheduledTime"`
		Tags          []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	created := s.store.Add(task.Task{
		Title:         req.Title,
		Description:   req.Description,
		TimeEstimate:  req.TimeEstimate,
		Priority:      task.Priority(req.Priority),
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		Tags:          req.Tags,
	})
	writeJSON(w, 201, created)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, 404, "task not found")
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Get(id); !ok {
		writeError(w, 404, "task not found")
		return
	}
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	// tags arrive as []any from JSON; the store expects []string
	if raw, ok := updates["tags"].([]any); ok {
		tags := make([]string, 0, len(raw))
		for _, v := range raw {
			if sv, ok := v.(string); ok {
				tags = append(tags, sv)
			}
		}
		updates["tags"] = tags
	}
	s.store.Update(id, updates)
	t, _ := s.store.Get(id)
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	s.store.Delete(r.PathValue("id"))
	w.WriteHeader(204)
}

func (s *Server) handleTaskMove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Get(id); !ok {
		writeError(w, 404, "task not found")
		return
	}
	var req struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	s.store.Move(id, req.Date, req.Time)
	t, _ := s.store.Get(id)
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskToggle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Get(id); !ok {
		writeError(w, 404, "task not found")
		return
	}
	s.store.ToggleComplete(id)
	t, _ := s.store.Get(id)
	writeJSON(w, 200, t)
}

// orEmpty keeps empty lists as [] rather than null in responses.
func orEmpty(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}

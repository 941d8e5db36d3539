package http

import (
	"net/http"

	"billtracker/internal/core"
)

// handleListInstances serves the calendar view: every instance of the
// caller, optionally restricted to ?month=YYYY-MM.
func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	views, err := s.deps.Instances.ListForOwner(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(views))
}

func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	var patch core.InstancePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.deps.Instances.Update(r.Context(), pathID(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	in, err := s.deps.Instances.TogglePaid(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Instances.Delete(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

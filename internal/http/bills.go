package http

import (
	"net/http"

	"billtracker/internal/core"
)

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Bills.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var patch core.BillPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.deps.Bills.Update(r.Context(), pathID(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bills.Delete(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevealCredentials(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Bills.Reveal(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleListBillInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.deps.Instances.ListForBill(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(instances))
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var in core.BillInstance
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Instances.Create(r.Context(), pathID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

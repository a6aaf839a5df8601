package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"dentaldesk/internal/builder"
	"dentaldesk/internal/log"
)

func (s *Server) session(r *http.Request) *builder.Session {
	return s.builder.Session(r.Context(), s.getTenant(r))
}

// =============================================================================
// State Handlers
// =============================================================================

// getBuilderStateHandler returns the tenant's builder state
func (s *Server) getBuilderStateHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	st := sess.State()
	st.Templates = sess.Templates()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": st,
	})
}

// putBuilderStateHandler replaces the tenant's builder state and persists it
func (s *Server) putBuilderStateHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return
	}
	st, err := builder.DecodeState(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_state", err.Error())
		return
	}

	sess := s.session(r)
	sess.ReplaceState(st)
	if err := sess.Save(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}

	log.Debug("Saved builder state for %s (%d widgets)", sess.Tenant(), builder.Count(st.CanvasWidgets))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// =============================================================================
// Canvas Handlers
// =============================================================================

// widgetTypesHandler returns the widget palette
func (s *Server) widgetTypesHandler(w http.ResponseWriter, r *http.Request) {
	types := builder.Types()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"types": types,
		"count": len(types),
	})
}

// canvasHandler returns the live canvas
func (s *Server) canvasHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session(r).Canvas())
}

// addWidgetHandler drops a widget onto the canvas
func (s *Server) addWidgetHandler(w http.ResponseWriter, r *http.Request) {
	var req builder.AddWidgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess := s.session(r)
	n, err := sess.AddWidget(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"widget": n,
		"canvas": sess.Canvas(),
	})
}

// updateWidgetHandler merges props into a widget
func (s *Server) updateWidgetHandler(w http.ResponseWriter, r *http.Request) {
	var patch builder.Props
	if !decodeJSON(w, r, &patch) {
		return
	}

	n, err := s.session(r).UpdateWidget(mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"widget": n,
	})
}

// removeWidgetHandler removes a widget and its children
func (s *Server) removeWidgetHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.session(r).RemoveWidget(mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// duplicateWidgetHandler copies a widget to the end of the canvas
func (s *Server) duplicateWidgetHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.session(r).DuplicateWidget(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"widget": n,
	})
}

// moveWidgetHandler reparents a widget
func (s *Server) moveWidgetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContainerID string `json:"containerId"`
		Index       *int   `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	index := builder.End
	if req.Index != nil {
		index = *req.Index
	}

	sess := s.session(r)
	if err := sess.MoveWidget(mux.Vars(r)["id"], req.ContainerID, index); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Canvas())
}

// dragWidgetHandler drives a drag gesture: phase "start" with the pointer
// position, any number of "move", then "end".
func (s *Server) dragWidgetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase string  `json:"phase"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sess := s.session(r)
	switch req.Phase {
	case "start":
		if err := sess.BeginDrag(mux.Vars(r)["id"], req.X, req.Y); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"dragging": true})

	case "move":
		n, err := sess.DragTo(req.X, req.Y)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"widget": n})

	case "end":
		moved, err := sess.EndDrag()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"moved":  moved,
			"canvas": sess.Canvas(),
		})

	default:
		writeError(w, http.StatusBadRequest, "invalid_phase", "phase must be start, move or end")
	}
}

// undoHandler steps back in history
func (s *Server) undoHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	changed := sess.Undo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"changed": changed,
		"canvas":  sess.Canvas(),
	})
}

// redoHandler steps forward in history
func (s *Server) redoHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	changed := sess.Redo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"changed": changed,
		"canvas":  sess.Canvas(),
	})
}

// saveCanvasHandler persists the canvas
func (s *Server) saveCanvasHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.session(r).Save(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// updateSettingsHandler applies a partial canvas settings change
func (s *Server) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !decodeJSON(w, r, &patch) {
		return
	}

	settings, err := s.session(r).UpdateSettings(patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_settings", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// =============================================================================
// Template Handlers
// =============================================================================

// listTemplatesHandler returns shipped and tenant templates
func (s *Server) listTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	templates := s.session(r).Templates()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

// saveTemplateHandler saves the canvas as a new template
func (s *Server) saveTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.session(r).SaveAsTemplate(req.Name, req.Description)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"template": t,
	})
}

// applyTemplateHandler replaces the canvas with a template
func (s *Server) applyTemplateHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	if err := sess.ApplyTemplate(mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Canvas())
}

package http

import (
	"errors"
	"net/http"

	"budget/internal/core"
	"budget/internal/log"
)

const tableRegion = "#table-region"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query(); len(q) > 0 {
		s.session.SetFilter(ParseFilter(q))
	}
	// A failed load is rendered as a banner inside the table.
	_ = s.session.EnsureLoaded(r.Context())

	data := pageView{Title: "Budget", Table: newTableView(s.session.Snapshot())}
	s.writeHTML(w, r, NewHTMXResponse(), "index.html", data)
}

// handleTable applies the filter controls and re-renders the table.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	s.session.SetFilter(ParseFilter(r.URL.Query()))
	_ = s.session.EnsureLoaded(r.Context())
	s.writeTable(w, r, NewHTMXResponse())
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	b := NewHTMXResponse()
	f, ok := core.ParseField(r.PostForm.Get("field"))
	if !ok {
		b.TriggerErrorNotification("Unknown column")
	} else if err := s.session.ToggleSort(f); err != nil {
		b.TriggerErrorNotification(core.UserMessage(err))
	}
	s.writeTable(w, r, b)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	b := NewHTMXResponse()
	if err := s.session.Reload(r.Context()); err != nil {
		b.TriggerErrorNotification(core.UserMessage(err))
	} else {
		b.TriggerItemsChanged(s.session.Snapshot().View.Summary.TotalCount)
	}
	s.writeTable(w, r, b)
}

// handleAddRow inserts the unsaved row at the top in edit mode.
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	s.session.AddRow()
	s.writeTable(w, r, NewHTMXResponse())
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	id, resp := ParseItemKey(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	b := NewHTMXResponse()
	if _, _, err := s.session.BeginEdit(id); err != nil {
		b.TriggerErrorNotification(core.UserMessage(err))
	}
	s.writeTable(w, r, b)
}

func (s *Server) handleDone(w http.ResponseWriter, r *http.Request) {
	s.endEdit(w, r, false)
}

// handleCancel leaves edit mode. Fields already blurred stay saved; the
// re-render from canonical state drops whatever the focused input held.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.endEdit(w, r, true)
}

func (s *Server) endEdit(w http.ResponseWriter, r *http.Request, cancel bool) {
	id, resp := ParseItemKey(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	end := s.session.Done
	if cancel {
		end = s.session.Cancel
	}
	b := NewHTMXResponse()
	if err := end(id); err != nil && !errors.Is(err, core.ErrNotEditing) {
		b.TriggerErrorNotification(core.UserMessage(err))
	}
	s.writeTable(w, r, b)
}

// handleCommitField saves one field when its input loses focus. The
// response replaces the input with the saved value, or the last known-good
// value on failure, and refreshes the row subtotal and the summary
// out-of-band. When the unsaved row gets created the whole row is swapped
// instead.
func (s *Server) handleCommitField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	id, resp := ParseItemKey(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	f, resp := ParseEditableField(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Malformed request").Write(w)
		return
	}
	raw := parser.GetText("value")
	if f != core.FieldNotes {
		raw = sanitizeInput(raw)
	}

	res, err := s.session.Commit(ctx, id, f, raw)
	b := NewHTMXResponse()
	if err != nil {
		if errors.Is(err, core.ErrNotEditing) || errors.Is(err, core.ErrUnknownItem) {
			// The row is gone or no longer editable; show the current table.
			b.Retarget(tableRegion, "innerHTML").TriggerWarningNotification(core.UserMessage(err))
			s.writeTable(w, r, b)
			return
		}
		s.appMetrics.saveFailures.Add(1)
		logger.WarnContext(ctx, "Field commit failed",
			log.FieldItemID, id.String(), log.FieldItemField, string(f), log.FieldError, err)
		b.TriggerErrorNotification(core.UserMessage(err))
	}

	snap := s.session.Snapshot()
	if res.Created {
		s.appMetrics.itemsCreated.Add(1)
		s.events.LogItemCreated(ctx, res.Item.ID.String(), res.Item.Category, res.Item.Item, res.Item.Subtotal().String())
		row, visible := findRow(snap, res.Item.ID.String())
		summary := newSummaryView(snap)
		summary.OOB = true
		b.Retarget("#row-"+res.PreviousKey, "outerHTML").
			TriggerSuccessNotification("Item added").
			TriggerItemsChanged(snap.View.Summary.TotalCount)
		s.writeHTML(w, r, b, "promoted", promotedView{Row: row, Visible: visible, Summary: summary})
		return
	}
	if res.Persisted {
		s.appMetrics.fieldsSaved.Add(1)
		s.events.LogFieldSaved(ctx, id.String(), string(f))
	}

	key := id.String()
	view := commitView{
		Cell:     cellFor(key, res.Item, f),
		Subtotal: subtotalView{Key: key, Text: core.FormatCurrency(res.Item.Subtotal()), OOB: true},
		Summary:  newSummaryView(snap),
	}
	view.Cell.Saving = snap.IsSaving(key, f)
	view.Summary.OOB = true
	s.writeHTML(w, r, b, "commit", view)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, resp := ParseItemKey(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	b := NewHTMXResponse()
	if err := s.session.Delete(r.Context(), id); err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogFailure(r.Context(), "Delete failed", log.OpDelete, id.String(), err)
		b.TriggerErrorNotification(core.UserMessage(err))
	} else {
		if !id.IsPending() {
			s.appMetrics.itemsDeleted.Add(1)
			b.TriggerSuccessNotification("Item deleted")
		}
		b.TriggerItemsChanged(s.session.Snapshot().View.Summary.TotalCount)
	}
	s.writeTable(w, r, b)
}

func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder) {
	s.writeHTML(w, r, b, "table", newTableView(s.session.Snapshot()))
}

package http

import (
	"net/http"

	"budget/internal/core"
	"budget/internal/log"
)

// handleDetail shows one item with its long-form markdown rendered.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, resp := ParseDetailID(r.URL.Query())
	if resp != nil {
		resp.Write(w)
		return
	}

	it, err := s.session.Detail(ctx, id)
	if err != nil {
		status := http.StatusBadGateway
		if core.IsNotFound(err) {
			status = http.StatusNotFound
		} else {
			log.FromContext(ctx).WarnContext(ctx, "Failed to load item detail", log.FieldItemID, id, log.FieldError, err)
		}
		s.writeHTML(w, r, NewHTMXResponse().Status(status), "detail.html",
			detailView{Title: "Item", Error: core.UserMessage(err)})
		return
	}
	s.writeHTML(w, r, NewHTMXResponse(), "detail.html", newDetailView(it, s.renderMarkdown(r, it)))
}

// handleSaveMarkdown stores the markdown body and returns the rendered
// fragment.
func (s *Server) handleSaveMarkdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, resp := ParseItemKey(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	value, ok := id.Value()
	if !ok {
		BadRequestError("Save the row before adding notes").Write(w)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Malformed request").Write(w)
		return
	}

	b := NewHTMXResponse()
	it, err := s.session.SaveMarkdown(ctx, value, parser.GetText("md_content"))
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Markdown save failed", log.FieldItemID, value, log.FieldError, err)
		b.TriggerErrorNotification(core.UserMessage(err))
		s.writeHTML(w, r, b, "markdown", markdownView{Key: id.String(), Error: core.UserMessage(err)})
		return
	}
	s.events.LogFieldSaved(ctx, id.String(), string(core.FieldMDContent))
	b.TriggerSuccessNotification("Notes saved")
	s.writeHTML(w, r, b, "markdown", s.renderMarkdown(r, it))
}

// handlePreview renders markdown without saving it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Malformed request").Write(w)
		return
	}
	md := markdownView{}
	html, err := s.renderer.Render(parser.GetText("md_content"))
	if err != nil {
		md.Error = "Could not render preview"
	}
	md.HTML = html
	s.writeHTML(w, r, NewHTMXResponse(), "preview", md)
}

func (s *Server) renderMarkdown(r *http.Request, it core.BudgetItem) markdownView {
	md := markdownView{Key: it.ID.String()}
	html, err := s.renderer.Render(it.MDContent)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Markdown render failed",
			log.FieldItemID, md.Key, log.FieldError, err)
		md.Error = "Could not render notes"
		return md
	}
	md.HTML = html
	return md
}

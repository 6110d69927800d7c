package ledger

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.PostPayment)
	r.Post("/opening-stock", h.PostOpeningStock)
	r.Post("/adjustments", h.PostAdjustment)
	r.Post("/events/{id}/reverse", h.Reverse)
	r.Post("/events/{id}/cancel", h.Cancel)
	r.Get("/events/{id}", h.GetEvent)
	r.Get("/accounts", h.ListBalances)
	r.Get("/accounts/hierarchy", h.Hierarchy)
	r.Get("/summary", h.Summary)
}

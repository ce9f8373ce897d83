package handlers

import (
	"net/http"
	"strconv"

	"github.com/kevinaaaquil/unilib/service"
)

type NotificationsHandler struct {
	Notifications *service.NotificationDispatcher
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var pg page
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	if err := validate(pagination(r, &pg)...); err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.Notifications.List(r.Context(), p, unread, pg.Page, pg.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, pg, total)
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	if err := h.Notifications.MarkRead(r.Context(), p, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/config"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/poller"
	"resqnet-web/pkg/utils"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	config *config.Config
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(cfg *config.Config) *NotificationHandler {
	return &NotificationHandler{config: cfg}
}

type notificationsView struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func newNotificationsView(list []models.Notification) notificationsView {
	if list == nil {
		list = []models.Notification{}
	}
	return notificationsView{Notifications: list, Unread: models.UnreadCount(list)}
}

// ListNotifications 通知列表；?unread=true 只取未读
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	fetch := page.API.ListNotifications
	if utils.GetQueryParam(r, "unread", "false") == "true" {
		fetch = page.API.ListUnreadNotifications
	}
	list, err := fetch(r.Context())
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteSuccessResponse(w, newNotificationsView(list))
}

// Stream pushes the notification list as server-sent events, refetching on
// the configured interval. It ends when the browser disconnects. A rejected
// credential ends the session, sends a "logout" event and closes the stream.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteErrorResponseWithCode(w, http.StatusNotImplemented, "STREAMING_UNSUPPORTED",
			"Streaming is not supported by this connection", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := obs.Logger().With().Str("path", r.URL.Path).Logger()
	p := poller.New(h.config.NotificationPollInterval, page.API.ListNotifications)
	err := p.Run(r.Context(), func(list []models.Notification, err error) bool {
		switch {
		case err == nil:
			writeEvent(w, "notifications", newNotificationsView(list))
		case errors.Is(err, client.ErrUnauthenticated):
			if lerr := page.Session.Logout(context.WithoutCancel(r.Context())); lerr != nil {
				log.Warn().Err(lerr).Msg("logout cleanup failed")
			}
			writeEvent(w, "logout", map[string]string{"location": page.ReloadTarget()})
			flusher.Flush()
			return false
		default:
			log.Warn().Err(err).Msg("notification poll failed")
			writeEvent(w, "error", map[string]string{"message": client.Message(err)})
		}
		flusher.Flush()
		return true
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, poller.ErrStopped) {
		log.Warn().Err(err).Msg("notification stream ended")
	}
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		obs.Logger().Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

// MarkRead 标记已读
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := page.API.MarkNotificationRead(r.Context(), id); err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"id": id, "read": true})
}

// DeleteNotification only deletes notifications the API marks deletable.
func (h *NotificationHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	list, err := page.API.ListNotifications(r.Context())
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	var target *models.Notification
	for i := range list {
		if list[i].ID == id {
			target = &list[i]
			break
		}
	}
	if target == nil {
		utils.WriteNotFoundResponse(w, "Notification not found")
		return
	}
	if !target.Deletable {
		utils.WriteErrorResponseWithCode(w, http.StatusConflict, utils.CodeConflict,
			"This notification cannot be deleted", "")
		return
	}

	if err := page.API.DeleteNotification(r.Context(), id); err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"id": id, "deleted": true})
}

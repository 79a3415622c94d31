package http

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/repository"
)

type sendPushReq struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	JobID string `json:"jobId"`
}

func sendPushHandler(push *notify.PushBroadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendPushReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.Title == "" || req.Body == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "title and body are required"})
		}

		res, err := push.Broadcast(c.Request().Context(), notify.PushPayload{
			Title: req.Title,
			Body:  req.Body,
			URL:   req.URL,
			JobID: req.JobID,
		})
		if err != nil {
			log.Errorf("push broadcast failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "push failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "push": res})
	}
}

func listNotificationsHandler(notifs repository.NotificationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		unreadOnly := c.QueryParam("unread") == "true"

		list, err := notifs.List(c.Request().Context(), unreadOnly, limit)
		if err != nil {
			log.Errorf("list notifications failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "count": len(list), "results": list})
	}
}

func markNotificationReadHandler(notifs repository.NotificationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
		}
		read := c.QueryParam("read") != "false"

		if err := notifs.MarkRead(c.Request().Context(), id, read); err != nil {
			log.Errorf("mark notification read failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true})
	}
}

type subscribePushReq struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

func subscribePushHandler(notifs repository.NotificationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req subscribePushReq
		if err := c.Bind(&req); err != nil || req.Endpoint == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "endpoint is required"})
		}

		err := notifs.InsertPushSubscription(c.Request().Context(), model.PushSubscription{
			Endpoint: req.Endpoint,
			P256dh:   req.P256dh,
			Auth:     req.Auth,
		})
		if err != nil {
			log.Errorf("subscribe push failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true})
	}
}

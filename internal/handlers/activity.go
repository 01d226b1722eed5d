package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
	"github.com/firmdesk/firmdesk-backend/internal/repos"
	"github.com/firmdesk/firmdesk-backend/internal/requestdata"
	"github.com/firmdesk/firmdesk-backend/internal/services"
)

type ActivityHandler struct {
	log      *logger.Logger
	repo     repos.ActivityRepo
	notifier services.ActivityNotifier
}

func NewActivityHandler(log *logger.Logger, repo repos.ActivityRepo, notifier services.ActivityNotifier) *ActivityHandler {
	return &ActivityHandler{
		log:      log.With("handler", "ActivityHandler"),
		repo:     repo,
		notifier: notifier,
	}
}

// List serves GET /activity: the tenant's recent feed, newest first.
func (h *ActivityHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	items, err := h.repo.ListByTenant(c.Request.Context(), rd.TenantID, limit)
	if err != nil {
		h.log.Error("failed to list activity", "tenant_id", rd.TenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list activity"})
		return
	}
	c.JSON(http.StatusOK, items)
}

type recordActivityRequest struct {
	Kind     string `json:"kind" binding:"required"`
	Message  string `json:"message" binding:"required"`
	EntityID string `json:"entity_id"`
}

// Record serves POST /activity: persists the item and pushes activity:new to
// the tenant's live dashboards.
func (h *ActivityHandler) Record(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req recordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, err := h.notifier.ActivityRecorded(c.Request.Context(), rd.TenantID, rd.UserID, req.Kind, req.Message, req.EntityID)
	if err != nil {
		h.log.Error("failed to record activity", "tenant_id", rd.TenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record activity"})
		return
	}
	c.JSON(http.StatusCreated, item)
}

type NotificationHandler struct {
	log      *logger.Logger
	repo     repos.NotificationRepo
	notifier services.NotificationNotifier
}

func NewNotificationHandler(log *logger.Logger, repo repos.NotificationRepo, notifier services.NotificationNotifier) *NotificationHandler {
	return &NotificationHandler{
		log:      log.With("handler", "NotificationHandler"),
		repo:     repo,
		notifier: notifier,
	}
}

// ListUnread serves GET /notifications.
func (h *NotificationHandler) ListUnread(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	items, err := h.repo.ListUnread(c.Request.Context(), rd.TenantID, rd.UserID)
	if err != nil {
		h.log.Error("failed to list notifications", "tenant_id", rd.TenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, items)
}

type createNotificationRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Title  string `json:"title" binding:"required"`
	Body   string `json:"body"`
}

// Create serves POST /notifications: persists and pushes notification:new.
func (h *NotificationHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	n, err := h.notifier.NotificationCreated(c.Request.Context(), rd.TenantID, userID, req.Title, req.Body)
	if err != nil {
		h.log.Error("failed to create notification", "tenant_id", rd.TenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create notification"})
		return
	}
	c.JSON(http.StatusCreated, n)
}

// MarkRead serves POST /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.repo.MarkRead(c.Request.Context(), rd.TenantID, id); err != nil {
		h.log.Error("failed to mark notification read", "tenant_id", rd.TenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

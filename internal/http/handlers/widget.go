package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openviz/widget-service/internal/http/response"
	"github.com/openviz/widget-service/internal/platform/ctxutil"
	"github.com/openviz/widget-service/internal/services"
)

type WidgetHandler struct {
	svc services.WidgetService
}

func NewWidgetHandler(svc services.WidgetService) *WidgetHandler {
	return &WidgetHandler{svc: svc}
}

// queryParams flattens the URL query to first-value-wins, the shape the
// translator expects.
func queryParams(c *gin.Context) map[string]string {
	raw := map[string]string{}
	for k, vs := range c.Request.URL.Query() {
		if len(vs) > 0 {
			raw[k] = vs[0]
		}
	}
	return raw
}

func caller(c *gin.Context) *ctxutil.RequestData {
	return ctxutil.GetRequestData(c.Request.Context())
}

// GET /api/widget
// GET /api/dataset/:dataset/widget
func (h *WidgetHandler) List(c *gin.Context) {
	raw := queryParams(c)
	if dataset := c.Param("dataset"); dataset != "" {
		raw["dataset"] = dataset
	}
	page, err := h.svc.Query(c.Request.Context(), caller(c), raw)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, page)
}

// GET /api/widget/:widget
// GET /api/dataset/:dataset/widget/:widget
func (h *WidgetHandler) Get(c *gin.Context) {
	w, err := h.svc.Get(c.Request.Context(), caller(c), c.Param("widget"), c.Param("dataset"), queryParams(c))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondData(c, w)
}

// POST /api/dataset/:dataset/widget
func (h *WidgetHandler) Create(c *gin.Context) {
	var in services.CreateWidgetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	w, err := h.svc.Create(c.Request.Context(), caller(c), c.Param("dataset"), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, w)
}

// PATCH /api/dataset/:dataset/widget/:widget
func (h *WidgetHandler) Update(c *gin.Context) {
	var in services.UpdateWidgetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	w, err := h.svc.Update(c.Request.Context(), caller(c), c.Param("dataset"), c.Param("widget"), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondData(c, w)
}

// POST /api/dataset/:dataset/widget/:widget/clone
func (h *WidgetHandler) Clone(c *gin.Context) {
	var in services.CloneWidgetInput
	// body is optional for a clone
	_ = c.ShouldBindJSON(&in)
	w, err := h.svc.Clone(c.Request.Context(), caller(c), c.Param("dataset"), c.Param("widget"), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, w)
}

// DELETE /api/dataset/:dataset/widget/:widget
func (h *WidgetHandler) Delete(c *gin.Context) {
	w, err := h.svc.Delete(c.Request.Context(), caller(c), c.Param("dataset"), c.Param("widget"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondData(c, w)
}

// DELETE /api/dataset/:dataset/widget
func (h *WidgetHandler) DeleteByDataset(c *gin.Context) {
	deleted, err := h.svc.DeleteByDataset(c.Request.Context(), caller(c), c.Param("dataset"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondData(c, deleted)
}

// DELETE /api/widget/by-user/:userId
func (h *WidgetHandler) DeleteByUser(c *gin.Context) {
	deleted, protected, err := h.svc.DeleteByUser(c.Request.Context(), caller(c), c.Param("userId"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"deletedWidgets":   deleted,
		"protectedWidgets": protected,
	})
}

// PATCH /api/widget/change-environment/:dataset/:env
func (h *WidgetHandler) ChangeEnvironment(c *gin.Context) {
	n, err := h.svc.UpdateEnvironment(c.Request.Context(), caller(c), c.Param("dataset"), c.Param("env"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"updated": n})
}

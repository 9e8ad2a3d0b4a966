package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shortener-core/internal/handler/request"
	"shortener-core/internal/handler/response"
	"shortener-core/internal/service/registration"
	"shortener-core/internal/service/transaction"
	"shortener-core/pkg/errno"
	"shortener-core/pkg/logger"
	"shortener-core/pkg/urlbody"
	"shortener-core/pkg/validator"
)

type ShortenerHandler struct {
	ctrl    *transaction.Controller
	machine *registration.Machine
	baseURL string
	// 后台注册使用服务生命周期的 ctx, 不随单个请求结束而取消
	baseCtx context.Context
}

func NewShortenerHandler(baseCtx context.Context, ctrl *transaction.Controller, machine *registration.Machine, baseURL string) *ShortenerHandler {
	return &ShortenerHandler{
		ctrl:    ctrl,
		machine: machine,
		baseURL: baseURL,
		baseCtx: baseCtx,
	}
}

// Redirect 短链跳转 GET /r/:key
func (h *ShortenerHandler) Redirect(c *gin.Context) {
	body, err := h.ctrl.ResolveURL(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if body == "" {
		c.JSON(http.StatusNotFound, response.Response{
			Code:    errno.ErrKeyNotFound.Code,
			Message: errno.ErrKeyNotFound.Message,
			Data:    gin.H{},
		})
		return
	}
	c.Redirect(http.StatusFound, urlbody.RedirectTarget(body))
}

// Resolve GET /api/v1/resolve/:key
func (h *ShortenerHandler) Resolve(c *gin.Context) {
	key := c.Param("key")
	body, err := h.ctrl.ResolveURL(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	if body == "" {
		response.Error(c, errno.ErrKeyNotFound)
		return
	}
	response.Success(c, gin.H{
		"key":      key,
		"url_body": body,
		"url":      urlbody.RedirectTarget(body),
	})
}

// Lookup GET /api/v1/lookup?url=
func (h *ShortenerHandler) Lookup(c *gin.Context) {
	var req request.LookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, errno.Wrapf(errno.ErrBind, "%s", validator.GetErrorMsg(err)))
		return
	}
	body := urlbody.Normalize(req.URL)

	key, err := h.ctrl.ResolveKey(c.Request.Context(), h.machine.Session(), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	data := gin.H{
		"url_body":   body,
		"registered": key != "",
	}
	if key != "" {
		data["key"] = key
		data["short_url"] = urlbody.ShortURL(h.baseURL, key)
	}
	response.Success(c, data)
}

// Register 异步发起注册 POST /api/v1/register
// 前置检查同步返回, 后续进度通过 GET /api/v1/registration 查询
func (h *ShortenerHandler) Register(c *gin.Context) {
	var req request.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.Wrapf(errno.ErrBind, "%s", validator.GetErrorMsg(err)))
		return
	}

	if err := h.machine.Start(h.baseCtx, req.URL); err != nil {
		logger.Info("注册请求被拒绝", zap.String("url", req.URL), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"url_body": urlbody.Normalize(req.URL),
		"accepted": true,
	})
}

// Registration GET /api/v1/registration
func (h *ShortenerHandler) Registration(c *gin.Context) {
	snap := h.machine.Snapshot()
	data := gin.H{
		"snapshot":   snap,
		"can_submit": h.machine.CanSubmit(),
	}
	if snap.Key != "" {
		data["short_url"] = urlbody.ShortURL(h.baseURL, snap.Key)
	}
	if snap.Err != nil {
		code, msg := errno.Decode(snap.Err)
		data["error"] = gin.H{"code": code, "msg": msg}
	}
	response.Success(c, data)
}

// Pending GET /api/v1/pending
func (h *ShortenerHandler) Pending(c *gin.Context) {
	list, err := h.ctrl.Pending(c.Request.Context())
	if err != nil {
		response.Error(c, errno.Wrap(errno.ErrDatabase, err))
		return
	}
	response.Success(c, list)
}

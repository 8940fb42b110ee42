package messages

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rochd1/the-final-progect/internal/auth"
	"github.com/rochd1/the-final-progect/internal/httpx"
	"github.com/rochd1/the-final-progect/internal/utils"
)

// Router is the delivery half the HTTP surface delegates to, satisfied
// by chat.Hub. HTTP sends go through the same persist-then-broadcast
// path as websocket sends.
type Router interface {
	SendMessage(from, to int64, content string) (Message, error)
	MarkRead(readerID, messageID int64) (Message, error)
}

type Service struct {
	Store  *Store
	Router Router
}

type sendReq struct {
	To      int64  `json:"to" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type pageReq struct {
	Limit int `form:"limit"`
}

type readReq struct {
	MessageID int64 `json:"message_id" binding:"required"`
}

func Register(rg *gin.RouterGroup, store *Store, router Router) {
	s := Service{
		Store:  store,
		Router: router,
	}
	rg.POST("/messages", s.send)
	rg.GET("/messages/:friendId", s.history)
	rg.POST("/messages/read", s.markRead)
}

func (s Service) send(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := s.Router.SendMessage(uid, req.To, req.Content)
	if err != nil {
		httpx.Err(c, statusFor(err), err.Error())
		return
	}
	httpx.OK(c, msg)
}

func (s Service) history(c *gin.Context) {
	uid := auth.MustUserID(c)
	fid, err := strconv.ParseInt(c.Param("friendId"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid friend id")
		return
	}

	var q pageReq
	_ = c.BindQuery(&q)

	list, err := s.Store.History(uid, fid, q.Limit)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "db error")
		return
	}
	if list == nil {
		list = []Message{}
	}
	httpx.OK(c, gin.H{"messages": list})
}

func (s Service) markRead(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req readReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := s.Router.MarkRead(uid, req.MessageID)
	if err != nil {
		httpx.Err(c, statusFor(err), err.Error())
		return
	}
	httpx.OK(c, msg)
}

func statusFor(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsAuthorization(err):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

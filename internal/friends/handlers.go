package friends

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rochd1/the-final-progect/internal/auth"
	"github.com/rochd1/the-final-progect/internal/httpx"
	"github.com/rochd1/the-final-progect/internal/storage"
	"github.com/rochd1/the-final-progect/internal/utils"
)

type Service struct {
	DB    *storage.Handle
	Store *Store
}

type requestReq struct {
	VibeCode string `json:"vibe_code" binding:"required"`
}

type respondReq struct {
	RequestID int64  `json:"request_id" binding:"required"`
	Action    string `json:"action" binding:"required,oneof=accepted rejected"`
}

func Register(rg *gin.RouterGroup, db *storage.Handle, store *Store) {
	s := Service{
		DB:    db,
		Store: store,
	}
	rg.POST("/friends/request", s.sendRequest)
	rg.POST("/friends/respond", s.respond)
	rg.GET("/friends/pending", s.pending)
	rg.GET("/friends", s.list)
}

func (s Service) sendRequest(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req requestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	var toID int64
	err := s.DB.QueryRow(`SELECT id FROM users WHERE vibe_code=?`, req.VibeCode).Scan(&toID)
	if errors.Is(err, sql.ErrNoRows) {
		httpx.Err(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}

	r, err := s.Store.Create(uid, toID)
	switch {
	case errors.Is(err, ErrAlreadySent):
		httpx.Err(c, http.StatusBadRequest, "Already sent")
		return
	case errors.Is(err, ErrSelfRequest):
		httpx.Err(c, http.StatusBadRequest, "Cannot friend yourself")
		return
	case err != nil:
		httpx.Err(c, http.StatusInternalServerError, "request failed")
		return
	}

	httpx.OK(c, r)
}

func (s Service) respond(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req respondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	r, err := s.Store.Respond(req.RequestID, uid, req.Action)
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Err(c, http.StatusNotFound, "Request not found")
		return
	case errors.Is(err, ErrNotRecipient):
		httpx.Err(c, http.StatusForbidden, "not your request")
		return
	case errors.Is(err, ErrBadAction):
		httpx.Err(c, http.StatusBadRequest, "invalid action")
		return
	case err != nil:
		httpx.Err(c, http.StatusInternalServerError, "respond failed")
		return
	}

	httpx.OK(c, r)
}

func (s Service) pending(c *gin.Context) {
	uid := auth.MustUserID(c)

	list, err := s.Store.Pending(uid)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "failed to fetch pending requests")
		return
	}
	httpx.OK(c, gin.H{"requests": list})
}

func (s Service) list(c *gin.Context) {
	uid := auth.MustUserID(c)

	list, err := s.Store.Friends(uid)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "failed to fetch friends")
		return
	}
	if list == nil {
		list = []Friend{}
	}
	httpx.OK(c, gin.H{"friends": list})
}

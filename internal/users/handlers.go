package users

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rochd1/the-final-progect/internal/auth"
	"github.com/rochd1/the-final-progect/internal/config"
	"github.com/rochd1/the-final-progect/internal/httpx"
	"github.com/rochd1/the-final-progect/internal/storage"
	"github.com/rochd1/the-final-progect/internal/utils"
)

type Service struct {
	DB        *storage.Handle
	JWTSecret string
	JWTTTLMin int
}

type registerReq struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updateMeReq struct {
	Theme     string `json:"theme" binding:"omitempty,oneof=light dark"`
	AvatarURL string `json:"avatar_url"`
}

// RegisterPublic mounts the routes that work without a token.
func RegisterPublic(rg *gin.RouterGroup, db *storage.Handle, cfg config.Config) {
	s := Service{
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		JWTTTLMin: cfg.JWTTTLMin,
	}
	rg.POST("/register", s.register)
	rg.POST("/login", s.login)
	rg.GET("/search/:vibeCode", s.search)
}

// Register mounts the token-guarded profile routes.
func Register(rg *gin.RouterGroup, db *storage.Handle) {
	s := Service{DB: db}
	rg.GET("/me", s.getMe)
	rg.PUT("/me", s.updateMe)
	rg.GET("/users/:id/last-seen", s.getLastSeen)
}

// mintVibeCode builds the directory handle: username plus four random
// digits, e.g. "sam!4821".
func mintVibeCode(username string) (string, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s!%d", username, 1000+v.Int64()), nil
}

func (s Service) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	var count int
	_ = s.DB.QueryRow(`SELECT COUNT(1) FROM users WHERE email=?`, req.Email).Scan(&count)
	if count > 0 {
		httpx.Err(c, http.StatusConflict, "Email Already Exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "registration failed")
		return
	}

	// Vibe codes are unique; retry a few times on the off chance of a
	// digit collision for the same username.
	var uid int64
	for attempt := 0; attempt < 5; attempt++ {
		code, err := mintVibeCode(req.Username)
		if err != nil {
			httpx.Err(c, http.StatusInternalServerError, "registration failed")
			return
		}
		uid, err = s.DB.InsertID(
			`INSERT INTO users (email, username, vibe_code, password_hash) VALUES (?, ?, ?, ?)`,
			req.Email, req.Username, code, hash,
		)
		if err == nil {
			break
		}
		if attempt == 4 {
			httpx.Err(c, http.StatusBadRequest, "Create User Failed")
			return
		}
	}

	tok, err := auth.NewToken(s.JWTSecret, uid, s.JWTTTLMin)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "Token Genration Failed")
		return
	}

	user, err := s.fetchProfile(uid)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "registration failed")
		return
	}
	httpx.Created(c, gin.H{"token": tok, "user": user})
}

func (s Service) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	row := s.DB.QueryRow(`SELECT id, password_hash FROM users WHERE email=?`, req.Email)

	var id int64
	var hash string
	if err := row.Scan(&id, &hash); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	if err := auth.CheckPassword(hash, req.Password); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	tok, _ := auth.NewToken(s.JWTSecret, id, s.JWTTTLMin)
	user, err := s.fetchProfile(id)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "login failed")
		return
	}
	httpx.OK(c, gin.H{"token": tok, "user": user})
}

func (s Service) search(c *gin.Context) {
	code := c.Param("vibeCode")

	row := s.DB.QueryRow(
		`SELECT id, username, vibe_code, COALESCE(avatar_url, '') FROM users WHERE vibe_code=?`, code)

	var id int64
	var username, vibe, avatar string
	if err := row.Scan(&id, &username, &vibe, &avatar); err != nil {
		httpx.Err(c, http.StatusNotFound, "User not found")
		return
	}

	httpx.OK(c, gin.H{
		"id":         id,
		"username":   username,
		"vibe_code":  vibe,
		"avatar_url": avatar,
	})
}

func (s Service) getMe(c *gin.Context) {
	uid := auth.MustUserID(c)
	if uid == 0 {
		httpx.Err(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := s.fetchProfile(uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httpx.Err(c, http.StatusNotFound, "user not found")
		} else {
			httpx.Err(c, http.StatusInternalServerError, "database error")
		}
		return
	}
	httpx.OK(c, user)
}

func (s Service) updateMe(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req updateMeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Theme != "" {
		if _, err := s.DB.Exec(`UPDATE users SET theme=? WHERE id=?`, req.Theme, uid); err != nil {
			httpx.Err(c, http.StatusInternalServerError, "update failed")
			return
		}
	}
	if req.AvatarURL != "" {
		if _, err := s.DB.Exec(`UPDATE users SET avatar_url=? WHERE id=?`, req.AvatarURL, uid); err != nil {
			httpx.Err(c, http.StatusInternalServerError, "update failed")
			return
		}
	}

	user, err := s.fetchProfile(uid)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}
	httpx.OK(c, user)
}

func (s Service) getLastSeen(c *gin.Context) {
	userIDStr := c.Param("id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	row := s.DB.QueryRow(`SELECT last_active FROM users WHERE id=?`, userID)
	var lastActive any
	if err := row.Scan(&lastActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httpx.Err(c, http.StatusNotFound, "user not found")
		} else {
			httpx.Err(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	lastSeen := ""
	if t := utils.CoerceTime(lastActive); !t.IsZero() {
		lastSeen = t.Format(time.RFC3339)
	}
	httpx.OK(c, gin.H{"last_seen": lastSeen})
}

func (s Service) fetchProfile(uid int64) (gin.H, error) {
	row := s.DB.QueryRow(
		`SELECT id, email, username, vibe_code, COALESCE(avatar_url, ''), theme, created_at
		 FROM users WHERE id=?`, uid)

	var id int64
	var email, username, vibe, avatar, theme string
	var created any
	if err := row.Scan(&id, &email, &username, &vibe, &avatar, &theme, &created); err != nil {
		return nil, err
	}

	return gin.H{
		"id":         id,
		"email":      email,
		"username":   username,
		"vibe_code":  vibe,
		"avatar_url": avatar,
		"theme":      theme,
		"created_at": utils.CoerceTime(created).Format(time.RFC3339),
	}, nil
}

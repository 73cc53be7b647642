package users

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/baatcheet/backend/internal/auth"
	"github.com/baatcheet/backend/internal/config"
	"github.com/baatcheet/backend/internal/httpx"
	"github.com/baatcheet/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Service struct {
	DB        *storage.DB
	JWTSecret string
	JWTTTLMin int
}

type signupReq struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterPublic mounts the credential-issuing endpoints.
func RegisterPublic(rg *gin.RouterGroup, db *storage.DB, cfg config.Config) {
	s := Service{
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		JWTTTLMin: cfg.JWTTTLMin,
	}
	rg.POST("/signup", s.signup)
	rg.POST("/login", s.login)
}

// RegisterAuthed mounts the user-directory endpoints behind the JWT
// middleware.
func RegisterAuthed(rg *gin.RouterGroup, db *storage.DB) {
	s := Service{DB: db}
	rg.GET("/auth/users", s.list)
	rg.GET("/users/:id/last-seen", s.lastSeen)
}

func (s Service) signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, httpx.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	var count int
	_ = s.DB.QueryRow(s.DB.Rebind(`SELECT COUNT(1) FROM users WHERE username=? OR email=?`),
		req.Username, req.Email).Scan(&count)
	if count > 0 {
		httpx.Err(c, http.StatusConflict, "username or email already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "create user failed")
		return
	}

	uid, err := s.DB.InsertID(c.Request.Context(),
		s.DB.Rebind(`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`),
		req.Username, req.Email, hash, storage.FormatTime(time.Now().UTC()))
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "create user failed")
		return
	}

	tok, err := auth.NewToken(s.JWTSecret, uid, s.JWTTTLMin)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "token generation failed")
		return
	}

	httpx.OK(c, gin.H{
		"token": tok,
		"user":  gin.H{"id": uid, "username": req.Username, "email": req.Email, "avatar": ""},
	})
}

func (s Service) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, httpx.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	row := s.DB.QueryRow(s.DB.Rebind(
		`SELECT id, username, avatar, password_hash FROM users WHERE email=?`), req.Email)

	var id int64
	var username, avatar, hash string
	if err := row.Scan(&id, &username, &avatar, &hash); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tok, err := auth.NewToken(s.JWTSecret, id, s.JWTTTLMin)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "token generation failed")
		return
	}
	httpx.OK(c, gin.H{
		"token": tok,
		"user":  gin.H{"id": id, "username": username, "email": req.Email, "avatar": avatar},
	})
}

// list returns every user except the caller, with presence for the contact
// list.
func (s Service) list(c *gin.Context) {
	uid := auth.MustUserID(c)

	rows, err := s.DB.Query(s.DB.Rebind(
		`SELECT id, username, avatar, is_online, last_seen FROM users WHERE id<>? ORDER BY username`), uid)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	var users []gin.H
	for rows.Next() {
		var (
			id       int64
			username string
			avatar   string
			online   bool
			lastSeen sql.NullString
		)
		if err := rows.Scan(&id, &username, &avatar, &online, &lastSeen); err != nil {
			continue
		}
		u := gin.H{"id": id, "username": username, "avatar": avatar, "is_online": online}
		if lastSeen.Valid {
			if t, err := storage.ParseTime(lastSeen.String); err == nil {
				u["last_seen"] = t.Format(time.RFC3339)
			}
		}
		users = append(users, u)
	}
	httpx.OK(c, gin.H{"users": users})
}

func (s Service) lastSeen(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid user id")
		return
	}

	row := s.DB.QueryRow(s.DB.Rebind(`SELECT last_seen FROM users WHERE id=?`), userID)
	var lastSeen sql.NullString
	if err := row.Scan(&lastSeen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httpx.Err(c, http.StatusNotFound, "user not found")
		} else {
			httpx.Err(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	res := gin.H{"last_seen": nil}
	if lastSeen.Valid {
		if t, err := storage.ParseTime(lastSeen.String); err == nil {
			res["last_seen"] = t.Format(time.RFC3339)
		}
	}
	httpx.OK(c, res)
}

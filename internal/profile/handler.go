package profile

import (
	"errors"
	"net/http"

	"github.com/baatcheet/backend/internal/auth"
	"github.com/baatcheet/backend/internal/httpx"
	"github.com/baatcheet/backend/internal/identity"
	"github.com/gin-gonic/gin"
)

type Service struct {
	Users *identity.Store
}

func Register(rg *gin.RouterGroup, users *identity.Store) {
	s := Service{Users: users}
	rg.GET("/me", s.getMe)
}

func (s Service) getMe(c *gin.Context) {
	uid := auth.MustUserID(c)
	if uid == 0 {
		httpx.Err(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := s.Users.ByID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownUser) {
			httpx.Err(c, http.StatusNotFound, "user not found")
		} else {
			httpx.Err(c, http.StatusInternalServerError, "database error")
		}
		return
	}
	httpx.OK(c, u)
}

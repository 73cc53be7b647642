package messages

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/baatcheet/backend/internal/auth"
	"github.com/baatcheet/backend/internal/httpx"
	"github.com/baatcheet/backend/internal/identity"
	"github.com/gin-gonic/gin"
)

type API struct {
	Store *Store
	Users *identity.Store
}

func Register(rg *gin.RouterGroup, store *Store, users *identity.Store) {
	api := API{Store: store, Users: users}
	rg.GET("/messages/:userId", api.history)
	rg.PUT("/messages/:userId/read", api.markRead)
}

func (a API) history(c *gin.Context) {
	uid := auth.MustUserID(c)
	other, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid user id")
		return
	}

	// The counterpart must exist even when the conversation is empty.
	if _, err := a.Users.ByID(c.Request.Context(), other); err != nil {
		if errors.Is(err, identity.ErrUnknownUser) {
			httpx.Err(c, http.StatusNotFound, "user not found")
			return
		}
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}

	list, err := a.Store.History(c.Request.Context(), uid, other)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}
	if list == nil {
		list = []Message{}
	}
	httpx.OK(c, gin.H{"messages": list})
}

func (a API) markRead(c *gin.Context) {
	uid := auth.MustUserID(c)
	other, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid user id")
		return
	}

	if _, err := a.Store.MarkConversationRead(c.Request.Context(), uid, other, time.Now().UTC()); err != nil {
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}
	httpx.OK(c, gin.H{"message": "messages marked as read"})
}

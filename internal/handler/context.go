package handler

import (
	"strathub/internal/model"

	"github.com/gin-gonic/gin"
)

// CurrentUser returns the authenticated user the auth middleware stored
// on the request, or nil on unauthenticated routes.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, ok := v.(*model.User)
	if !ok {
		return nil
	}
	return user
}

// CurrentUserID returns the authenticated user's id, or "" when absent.
func CurrentUserID(c *gin.Context) string {
	v, ok := c.Get("user_id")
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}

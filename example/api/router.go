package api

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

type bearerTokenKey struct{}

// BearerToken returns the caller's bearer token from the request context, or
// an empty string when the request carried none.
func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenKey{}).(string)
	return token
}

// NewRouter wires the handlers into a Gin engine. Authentication is owned by
// an external collaborator; bearerTokenMiddleware only makes the token
// available to downstream services through the request context.
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(bearerTokenMiddleware())

	books := router.Group("/books")
	{
		books.GET("/", handler.ListBooks)
		books.GET("/available/", handler.AvailableBooks)
		books.GET("/:id/", handler.GetBook)
	}

	members := router.Group("/members")
	{
		members.GET("/", handler.ListMembers)
		members.GET("/:id/issues/", handler.MemberIssues)
	}

	issues := router.Group("/issues")
	{
		issues.GET("/", handler.ListIssues)
		issues.POST("/issue/", handler.IssueBook)
		issues.POST("/return_book/", handler.ReturnBook)
	}

	return router
}

func bearerTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		if token, found := strings.CutPrefix(authorization, "Bearer "); found && token != "" {
			ctx := context.WithValue(c.Request.Context(), bearerTokenKey{}, token)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

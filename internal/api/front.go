package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tribbler/internal/front"
	"tribbler/internal/replica"
	"tribbler/internal/rpc"
)

// Front serves the user-facing operations over HTTP.
type Front struct {
	server *front.Server
}

func NewFront(s *front.Server) *Front {
	return &Front{server: s}
}

// SetupRoutes registers the front-end endpoints on r.
func (f *Front) SetupRoutes(r *gin.Engine) {
	tr := r.Group("/trib")
	{
		tr.POST("/sign-up", f.SignUp)
		tr.GET("/users", f.ListUsers)
		tr.POST("/post", f.Post)
		tr.POST("/tribs", f.Tribs)
		tr.POST("/follow", f.Follow)
		tr.POST("/unfollow", f.Unfollow)
		tr.POST("/is-following", f.IsFollowing)
		tr.POST("/following", f.Following)
		tr.POST("/home", f.Home)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// status maps service errors to HTTP codes.
func status(err error) int {
	switch {
	case errors.Is(err, front.ErrInvalidUsername),
		errors.Is(err, front.ErrWhoWhom),
		errors.Is(err, front.ErrTribTooLong):
		return http.StatusBadRequest
	case errors.Is(err, front.ErrUserDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, front.ErrUsernameTaken),
		errors.Is(err, front.ErrAlreadyFollowing),
		errors.Is(err, front.ErrNotFollowing),
		errors.Is(err, front.ErrFollowingTooMany):
		return http.StatusConflict
	case errors.Is(err, replica.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(status(err), gin.H{"error": err.Error()})
}

func (f *Front) SignUp(c *gin.Context) {
	var req rpc.Username
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := f.server.SignUp(c.Request.Context(), req.User); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (f *Front) ListUsers(c *gin.Context) {
	users, err := f.server.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rpc.StringList{List: users})
}

func (f *Front) Post(c *gin.Context) {
	var req rpc.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := f.server.Post(c.Request.Context(), req.Who, req.Message, req.Clock); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (f *Front) Tribs(c *gin.Context) {
	var req rpc.Username
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tribs, err := f.server.Tribs(c.Request.Context(), req.User)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rpc.TribList{Tribs: tribs})
}

func (f *Front) Follow(c *gin.Context) {
	var req rpc.WhoWhom
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := f.server.Follow(c.Request.Context(), req.Who, req.Whom); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (f *Front) Unfollow(c *gin.Context) {
	var req rpc.WhoWhom
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := f.server.Unfollow(c.Request.Context(), req.Who, req.Whom); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (f *Front) IsFollowing(c *gin.Context) {
	var req rpc.WhoWhom
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	following, err := f.server.IsFollowing(c.Request.Context(), req.Who, req.Whom)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rpc.Bool{Value: following})
}

func (f *Front) Following(c *gin.Context) {
	var req rpc.Username
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	users, err := f.server.Following(c.Request.Context(), req.User)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rpc.StringList{List: users})
}

func (f *Front) Home(c *gin.Context) {
	var req rpc.Username
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tribs, err := f.server.Home(c.Request.Context(), req.User)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rpc.TribList{Tribs: tribs})
}

package handlers

import "github.com/gin-gonic/gin"

// API groups the handlers served under /api.
type API struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Projects *ProjectHandler
	Members  *ProjectMemberHandler
	Uploads  *UploadHandler
}

// Register mounts the API routes on api. authRequired guards everything
// except signup, which runs signupGuards first.
func (h *API) Register(api *gin.RouterGroup, authRequired gin.HandlerFunc, signupGuards ...gin.HandlerFunc) {
	auth := api.Group("/auth")
	{
		auth.POST("/signup", append(signupGuards, h.Auth.Signup)...)
	}

	protected := api.Group("")
	protected.Use(authRequired)
	{
		// Self service
		protected.GET("/users/me", h.Users.Me)
		protected.PATCH("/users/me", h.Users.UpdateMe)
		protected.GET("/users/me/history", h.Users.MyHistory)
		protected.GET("/users/me/projects", h.Users.MyProjects)
		protected.POST("/uploads/presign", h.Uploads.Presign)

		// Users
		protected.GET("/users", h.Users.List)
		protected.GET("/users/pending", h.Users.ListPending)
		protected.GET("/users/:id", h.Users.Get)
		protected.GET("/users/:id/history", h.Users.History)
		protected.POST("/users/:id/approve", h.Users.Approve)
		protected.POST("/users/:id/admin", h.Users.SetAdmin)
		protected.DELETE("/users/:id", h.Users.Delete)

		// Projects
		protected.GET("/projects", h.Projects.List)
		protected.GET("/projects/:id", h.Projects.GetByID)
		protected.POST("/projects", h.Projects.Create)
		protected.PATCH("/projects/:id", h.Projects.Update)
		protected.DELETE("/projects/:id", h.Projects.Delete)

		// Project members
		protected.GET("/projects/:id/members", h.Members.List)
		protected.GET("/projects/:id/members/history", h.Members.History)
		protected.POST("/projects/:id/members", h.Members.Add)
		protected.PATCH("/projects/:id/members/:userId", h.Members.Update)
		protected.DELETE("/projects/:id/members/:userId", h.Members.Remove)
	}
}

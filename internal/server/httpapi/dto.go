package httpapi

import "github.com/gin-gonic/gin"

type RegisterUserRequest struct {
	Username string `json:"username" binding:"required,maxbytes=120"`
	Email    string `json:"email" binding:"omitempty,email,maxbytes=50"`
	Password string `json:"password" binding:"required,minbytes=8,maxbytes=60"`
}

type UserAuthRequest struct {
	UsernameOrToken string `json:"username_or_token" binding:"required"`
	Password        string `json:"password"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type EndpointInfo struct {
	URL          string   `json:"url"`
	Methods      []string `json:"methods"`
	RequireLogin bool     `json:"require_login"`
}

func successBody(data any) gin.H {
	return gin.H{"status": "success", "data": data}
}

func errorBody(message string) gin.H {
	return gin.H{"status": "error", "message": message}
}

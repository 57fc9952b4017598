package auth

// SignInRequest is accepted as JSON or form data on POST /login.
type SignInRequest struct {
	Email     string `json:"email" form:"email" binding:"required,email"`
	Password  string `json:"password" form:"password" binding:"required"`
	IPAddress string `json:"-" form:"-"`
}

// MagicLinkRequest is accepted on POST /login/magic-link.
type MagicLinkRequest struct {
	Email string `json:"email" form:"email" binding:"required,email"`
	Next  string `json:"next" form:"next"`
}

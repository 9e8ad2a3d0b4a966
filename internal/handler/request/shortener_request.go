package request

type RegisterRequest struct {
	URL string `json:"url" binding:"required,urlbody,max=2048"`
}

type LookupRequest struct {
	URL string `form:"url" binding:"required,urlbody,max=2048"`
}

package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyUserID        = "user_id"
	KeyFullName      = "full_name"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)

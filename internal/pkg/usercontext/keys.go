package usercontext

// Locals keys shared by middlewares and controllers
const (
	KeyAccountID     = "account_id"
	KeyRequestID     = "request_id"
	KeyWebhookAuthed = "webhook_authed"
)

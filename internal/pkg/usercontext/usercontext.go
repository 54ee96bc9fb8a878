package usercontext

import "github.com/gofiber/fiber/v2"

// AccountContext identifies the caller of an account-scoped request. The
// account id is asserted by the upstream authentication layer.
type AccountContext struct {
	AccountID string `json:"account_id"`
	RequestID string `json:"request_id"`
}

// GetAccountContext retrieves the account context from fiber context.
// Returns an empty context if none is set.
func GetAccountContext(c *fiber.Ctx) AccountContext {
	if ctx, ok := c.Locals("ACCOUNT_CONTEXT").(AccountContext); ok {
		return ctx
	}
	return AccountContext{}
}

func SetAccountContext(c *fiber.Ctx, ctx AccountContext) {
	c.Locals("ACCOUNT_CONTEXT", ctx)
	c.Locals(KeyAccountID, ctx.AccountID)
	c.Locals(KeyRequestID, ctx.RequestID)
}

// GetAccountID returns the caller's account id, or "" when unauthenticated
func GetAccountID(c *fiber.Ctx) string {
	return GetAccountContext(c).AccountID
}

func HasAccount(c *fiber.Ctx) bool {
	return GetAccountID(c) != ""
}

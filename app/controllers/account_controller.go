package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"github.com/ManuelReschke/entitlement-sync/app/repository"
)

type AccountController struct {
	accounts repository.AccountRepository
}

func NewAccountController(accounts repository.AccountRepository) *AccountController {
	return &AccountController{accounts: accounts}
}

type CreateAccountRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=200"`
}

type CreateAccountResponse struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	PlanLevel models.PlanLevel `json:"plan_level"`
	CreatedAt time.Time        `json:"created_at"`
}

// HandleCreateAccount creates an account with an empty subscription ledger.
func (ac *AccountController) HandleCreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid JSON body")
		}
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	account, err := models.NewAccount(req.Email)
	if err != nil {
		return badRequest(c, validationMessage(err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()
	if err := ac.accounts.Create(ctx, account); err != nil {
		log.Errorf("[API] Creating account failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal_server_error", Message: "Account could not be created"})
	}

	log.Infof("[API] Created account %s", account.ID)
	return c.Status(fiber.StatusCreated).JSON(CreateAccountResponse{
		ID:        account.ID,
		Email:     account.Email,
		PlanLevel: account.Ledger.PlanLevel,
		CreatedAt: account.CreatedAt,
	})
}

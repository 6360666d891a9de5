package api

import (
	"github.com/pollbridge/pollbridge/pkg/internal/http/exts"
	"github.com/pollbridge/pollbridge/pkg/internal/services"
	"github.com/pollbridge/pollbridge/pkg/internal/wallet"

	"github.com/gofiber/fiber/v2"
)

func listPolls(c *fiber.Ctx) error {
	account := exts.WalletAccount(c)
	if len(account) > 0 {
		// Seen accounts join the refresh schedule so their vote maps stay warm.
		wallet.Touch(account)
	}

	views := services.ListPollViews(c.UserContext(), account)

	return c.JSON(fiber.Map{
		"polls":        views,
		"last_poll_id": services.LastPollId(),
		"ui_locked":    services.ConfirmationGateHeld(),
		"refreshed_at": services.RefreshedAt(),
	})
}

func getPoll(c *fiber.Ctx) error {
	pollId, _ := c.ParamsInt("pollId")
	account := exts.WalletAccount(c)

	view, err := services.GetPollView(c.UserContext(), account, uint32(pollId))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return c.JSON(view)
}

func createPoll(c *fiber.Ctx) error {
	session, err := exts.EnsureWallet(c)
	if err != nil {
		return err
	}

	var data services.PollDraft
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if err := services.ValidateDraft(data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	poll, err := services.CreatePoll(c.UserContext(), session.Address, data)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(poll)
}

func deletePoll(c *fiber.Ctx) error {
	pollId, _ := c.ParamsInt("pollId")

	session, err := exts.EnsureWallet(c)
	if err != nil {
		return err
	}

	if err := services.DeletePoll(c.UserContext(), session.Address, uint32(pollId)); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.SendStatus(fiber.StatusNoContent)
}

package api

import (
	"errors"

	"github.com/pollbridge/pollbridge/pkg/internal/http/exts"
	"github.com/pollbridge/pollbridge/pkg/internal/services"

	"github.com/gofiber/fiber/v2"
)

// A colliding submission is a conflict, not a bad request; everything else
// the sequencer rejects maps to 400.
func voteStatusCode(err error) int {
	if errors.Is(err, services.ErrStillSubmitting) {
		return fiber.StatusConflict
	}
	return fiber.StatusBadRequest
}

func stageVote(c *fiber.Ctx) error {
	pollId, _ := c.ParamsInt("pollId")

	session, err := exts.EnsureWallet(c)
	if err != nil {
		return err
	}

	var data struct {
		OptionID uint32 `json:"option_id" validate:"required"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if err := services.StageVote(session.Address, uint32(pollId), data.OptionID); err != nil {
		return fiber.NewError(voteStatusCode(err), err.Error())
	}

	view, err := services.GetPollView(c.UserContext(), session.Address, uint32(pollId))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return c.JSON(view)
}

func confirmVote(c *fiber.Ctx) error {
	pollId, _ := c.ParamsInt("pollId")

	session, err := exts.EnsureWallet(c)
	if err != nil {
		return err
	}

	if err := services.ConfirmVote(c.UserContext(), session.Address, uint32(pollId)); err != nil {
		return fiber.NewError(voteStatusCode(err), err.Error())
	}

	view, err := services.GetPollView(c.UserContext(), session.Address, uint32(pollId))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return c.JSON(view)
}

func cancelVote(c *fiber.Ctx) error {
	pollId, _ := c.ParamsInt("pollId")

	session, err := exts.EnsureWallet(c)
	if err != nil {
		return err
	}

	if err := services.CancelVote(session.Address, uint32(pollId)); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.SendStatus(fiber.StatusNoContent)
}

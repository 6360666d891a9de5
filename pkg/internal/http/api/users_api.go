package api

import (
	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/http/exts"
	"github.com/pollbridge/pollbridge/pkg/internal/services"
	"github.com/pollbridge/pollbridge/pkg/internal/wallet"

	"github.com/gofiber/fiber/v2"
)

// BalanceSource is swapped out in tests; in production it is always the
// shared gateway client.
var BalanceSource wallet.BalanceSource

func getUserinfo(c *fiber.Ctx) error {
	session, err := exts.EnsureWallet(c)
	if err != nil {
		return err
	}

	balance, err := wallet.FetchBalance(c.UserContext(), BalanceSource, session)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, gateway.ShortMessage(err))
	}

	return c.JSON(fiber.Map{
		"address":   session.Address,
		"connected": session.Connected,
		"balance":   balance,
	})
}

func listNotifications(c *fiber.Ctx) error {
	session, err := exts.EnsureWallet(c)
	if err != nil {
		return err
	}

	return c.JSON(services.DrainNotifications(session.Address))
}

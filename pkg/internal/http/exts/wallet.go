package exts

import (
	"github.com/pollbridge/pollbridge/pkg/internal/wallet"

	"github.com/gofiber/fiber/v2"
)

const WalletHeader = "X-Wallet-Address"

// WalletAccount reads the caller's wallet address, if any. Reads work fine
// without one; they just lose the user-scoped parts of the view.
func WalletAccount(c *fiber.Ctx) string {
	return c.Get(WalletHeader)
}

// EnsureWallet requires a connected wallet session for fee-bearing calls.
func EnsureWallet(c *fiber.Ctx) (wallet.Session, error) {
	address := c.Get(WalletHeader)
	if len(address) == 0 {
		return wallet.Session{}, fiber.NewError(fiber.StatusUnauthorized, "no wallet session connected")
	}

	return wallet.Touch(address), nil
}

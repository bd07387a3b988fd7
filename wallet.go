package obscurate

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Obscuratexyz/obscurate-client/types"
)

// Balance returns the current wallet balance as reported by the sidecar.
func (c *Client) Balance(ctx context.Context) (*types.WalletBalance, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}
	if err := c.ensureUnlocked(); err != nil {
		return nil, err
	}
	return c.conn.authority.Balance(ctx, c.store.get())
}

// LargestNote returns the value of the largest spendable note, useful for
// checking whether a payment can be made without merging notes.
func (c *Client) LargestNote(ctx context.Context) (decimal.Decimal, error) {
	balance, err := c.Balance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.LargestNote, nil
}

// CanAfford reports whether the wallet covers the given amount. Any
// failure to determine the balance reads as "no".
func (c *Client) CanAfford(ctx context.Context, amount decimal.Decimal) bool {
	balance, err := c.Balance(ctx)
	if err != nil {
		return false
	}
	return balance.TotalBalance.GreaterThanOrEqual(amount)
}

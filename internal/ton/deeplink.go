package ton

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkotov/splitton/internal/models"
)

// nanoPlaces converts between display units and chain base units
// (nanotons): 1 TON = 10^9 nano.
const nanoPlaces = 9

// PaymentMemo renders the transfer comment for a bill. The embedded
// "bill_<billID>" token is the sole correlation key the reconciler
// matches on; that exact substring must be preserved.
func PaymentMemo(billID string, currency models.Currency) string {
	if currency == models.CurrencyUSDT {
		return fmt.Sprintf("Split Bill Payment (USDT) - bill_%s", billID)
	}
	return fmt.Sprintf("Split Bill Payment - bill_%s", billID)
}

// MemoToken returns the correlation token embedded in a bill's payment
// memo.
func MemoToken(billID string) string {
	return "bill_" + billID
}

// ToNano converts a display amount to an integer base-unit string,
// truncating below one nano.
func ToNano(amount decimal.Decimal) string {
	return amount.Shift(nanoPlaces).Truncate(0).String()
}

// FromNano converts chain base units to a display amount.
func FromNano(baseUnits int64) decimal.Decimal {
	return decimal.New(baseUnits, -nanoPlaces)
}

// TransferLink renders a ton://transfer deep link for the given receiving
// address, amount, and memo. The memo is percent-encoded (spaces as %20,
// not +).
func TransferLink(address string, amount decimal.Decimal, memo string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(memo), "+", "%20")
	return fmt.Sprintf("ton://transfer/%s?amount=%s&text=%s", address, ToNano(amount), encoded)
}

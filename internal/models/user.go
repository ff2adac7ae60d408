package models

// User represents a registered user mirrored from Telegram identity.
// Users are created/updated on Mini App login; there is no password.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// TelegramID is the user's Telegram account ID (unique).
	TelegramID int64 `json:"telegram_id"`

	// Username is the Telegram @username, may be empty.
	Username string `json:"username,omitempty"`

	// FirstName is the Telegram profile first name.
	FirstName string `json:"first_name,omitempty"`

	// WalletAddress is the user's receiving TON wallet address, empty
	// until configured. Validated before persisting; bills created by a
	// user without a wallet cannot issue payment intents.
	WalletAddress string `json:"wallet_address,omitempty"`

	// CreatedAt is the Unix timestamp when the user first logged in.
	CreatedAt int64 `json:"created_at"`
}

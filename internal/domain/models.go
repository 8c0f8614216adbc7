// Package domain holds the data model shared by the store, the control API
// and the supervisor: email services, bot users, tracked mailboxes and their
// sender whitelists.
package domain

// EmailService is an IMAP endpoint descriptor referenced by EmailBoxes.
type EmailService struct {
	ID      int64
	Title   string
	Slug    string
	Address string
	Port    int
}

// BotUser is a chat user identified by an opaque Telegram id.
type BotUser struct {
	TelegramID int64
	IsActive   bool
}

// EmailBox is a tracked mailbox: owning user, referenced service, login and
// an opaque password ciphertext. The plaintext password never leaves the
// worker or supervisor that decrypts it.
type EmailBox struct {
	ID             int64
	UserID         int64
	EmailServiceID int64
	Username       string
	PasswordCipher string
	IsActive       bool
}

// BoxFilter is one allowed-sender entry for a mailbox.
type BoxFilter struct {
	ID          int64
	BoxID       int64
	FilterValue string
	FilterName  string
}

// Whitelist returns the set of filter_value strings for a slice of filters.
// An empty slice means "accept all senders".
func Whitelist(filters []BoxFilter) map[string]struct{} {
	if len(filters) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(filters))
	for _, f := range filters {
		set[f.FilterValue] = struct{}{}
	}
	return set
}

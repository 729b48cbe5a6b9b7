package store

import "errors"

// Sentinel errors returned by transactional store operations. Handlers map
// these to HTTP statuses with errors.Is; lookups that simply miss return
// (nil, nil) instead.
var (
	// ErrNotFound: entity missing, or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// Focus state machine.
	ErrFocusLimitReached = errors.New("focus limit reached")
	ErrNotInFocus        = errors.New("interest is not in focus")
	ErrNoOpenStint       = errors.New("no open focus stint for this interest")

	// Interest must be FOCUS and ACTIVE for tree mutations.
	ErrNotInteractive = errors.New("interest is not interactive")

	// Target tree caps and terminal states.
	ErrBulletLimit      = errors.New("bullet limit reached")
	ErrActiveTodoLimit  = errors.New("active todo limit reached")
	ErrBacklogTodoLimit = errors.New("backlog todo limit reached")
	ErrTodoDone         = errors.New("todo is done")

	// Export lifecycle.
	ErrPaymentRequired = errors.New("payment required")
	ErrExportCanceled  = errors.New("export canceled")
	ErrExportConsumed  = errors.New("export already consumed")
	ErrNotExportable   = errors.New("only focus interests can be exported")
	ErrNotRedeemable   = errors.New("token not redeemable")
	ErrTokenForbidden  = errors.New("token belongs to another user")
	ErrNotCancelable   = errors.New("export cannot be canceled")
	ErrNotPayable      = errors.New("export is not payable")
	ErrExportsFreeNow  = errors.New("exports are currently free")

	// Webhook reconciliation.
	ErrDuplicateEvent   = errors.New("webhook event already recorded")
	ErrAlreadySettled   = errors.New("export already settled")
	ErrUnexpectedStatus = errors.New("export in unexpected status")
	ErrAmountMismatch   = errors.New("amount mismatch")
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// Users.
	ErrEmailTaken = errors.New("email already in use")
)

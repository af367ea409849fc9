package wallet

import "context"

// ConfirmationLevel describes how settled a submitted transfer is
// according to the network.
type ConfirmationLevel string

const (
	// LevelPending means the network has not processed the signature yet.
	LevelPending ConfirmationLevel = "pending"
	// LevelConfirmed means the transfer was included in a block.
	LevelConfirmed ConfirmationLevel = "confirmed"
	// LevelFinalized means the transfer can no longer be rolled back.
	LevelFinalized ConfirmationLevel = "finalized"
)

// TransferResult captures the outcome of a transfer submission.
type TransferResult struct {
	// Signature identifies the submitted transaction on the network.
	Signature string
	// Confirmed reports whether the signing backend already observed a
	// confirmation at submission time. Such payments are recorded in
	// their terminal state and skip the confirmation poll.
	Confirmed bool
}

// SignatureStatus is the status oracle's view of a submitted signature.
type SignatureStatus struct {
	Level ConfirmationLevel
	// Err carries a network reported execution failure, empty otherwise.
	Err string
}

// Session is an active signing session able to authorize transfers on
// behalf of a funds holder.
type Session interface {
	// IsConnected reports whether the session can sign and submit.
	IsConnected() bool
	// ValidateAddress checks the recipient address format for the
	// session's network.
	ValidateAddress(address string) error
	// Balance returns the native balance of the address in whole units.
	Balance(ctx context.Context, address string) (float64, error)
	// SignAndSendTransfer signs and submits a native transfer.
	SignAndSendTransfer(ctx context.Context, recipient string, amount float64, memo string) (TransferResult, error)
	// Close releases network connections held by the session.
	Close()
}

// StatusOracle reports the confirmation state of previously submitted
// transfers by signature.
type StatusOracle interface {
	SignatureStatus(ctx context.Context, signature string) (SignatureStatus, error)
}

package session

import "github.com/verte-zerg/shadowshield/internal/model"

// Message is an inbound request to the controller.
type Message interface {
	messageName() string
}

// LoginResult reports the outcome of one login attempt.
type LoginResult struct {
	Status      model.OutcomeStatus
	Username    string
	VectorValid bool
}

// UnlockAttempt carries a passcode typed on the frozen screen.
type UnlockAttempt struct {
	Passcode string
}

// UnlockSystem resets the session without a passcode check.
type UnlockSystem struct{}

// ShutdownPrototype closes the frozen screen without validation or reset.
type ShutdownPrototype struct{}

// OpenFileDialog asks for a file to read. The answer arrives on Reply, which
// must have room for one value.
type OpenFileDialog struct {
	Reply chan<- DialogReply
}

// SaveFileDialog asks for a destination path. The answer arrives on Reply.
type SaveFileDialog struct {
	DefaultName string
	Reply       chan<- DialogReply
}

// DialogReply answers a file dialog. OK is false when the user cancelled.
type DialogReply struct {
	Path string
	OK   bool
	Err  error
}

func (LoginResult) messageName() string       { return "login-result" }
func (UnlockAttempt) messageName() string     { return "unlock-attempt" }
func (UnlockSystem) messageName() string      { return "unlock-system" }
func (ShutdownPrototype) messageName() string { return "shutdown-prototype" }
func (OpenFileDialog) messageName() string    { return "open-file-dialog" }
func (SaveFileDialog) messageName() string    { return "save-file-dialog" }

// Package unlock validates the frozen-screen passcode.
package unlock

// Passcode is the fixed value that releases the frozen screen.
const Passcode = "9760"

// Validate reports whether passcode matches exactly.
func Validate(passcode string) bool {
	return passcode == Passcode
}

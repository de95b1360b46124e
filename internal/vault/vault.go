// Package vault wires file dialogs to the backend encrypt, list and decrypt calls.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verte-zerg/shadowshield/internal/backend"
	"github.com/verte-zerg/shadowshield/internal/logging"
)

// Suffix marks encrypted artifacts in the vault.
const Suffix = ".enc"

// Backend is the subset of the backend client used here.
type Backend interface {
	EncryptFile(ctx context.Context, filename string, data []byte) (string, error)
	ListVault(ctx context.Context) ([]string, error)
	DecryptFile(ctx context.Context, vaultFilename string) ([]byte, error)
}

// Dialogs asks the user for paths. ok is false when the dialog was cancelled.
type Dialogs interface {
	OpenFile(ctx context.Context) (path string, ok bool, err error)
	SaveFile(ctx context.Context, defaultName string) (path string, ok bool, err error)
}

// FileOperationError is a user-facing vault failure. Msg is shown as-is.
type FileOperationError struct {
	Msg string
	Err error
}

func (e *FileOperationError) Error() string {
	return e.Msg
}

func (e *FileOperationError) Unwrap() error {
	return e.Err
}

// Ops runs vault operations.
type Ops struct {
	backend Backend
	dialogs Dialogs
	log     *logging.Logger
}

// New builds Ops. A nil logger discards diagnostics.
func New(b Backend, d Dialogs, log *logging.Logger) *Ops {
	if log == nil {
		log = logging.Discard()
	}
	return &Ops{backend: b, dialogs: d, log: log}
}

// Encrypt asks for a file, uploads it and returns the confirmation message.
func (o *Ops) Encrypt(ctx context.Context) (string, error) {
	path, ok, err := o.dialogs.OpenFile(ctx)
	if err != nil {
		return "", o.fail("Encryption error: "+err.Error(), err)
	}
	if !ok || path == "" {
		return "", &FileOperationError{Msg: "No file selected."}
	}
	return o.EncryptPath(ctx, path)
}

// EncryptPath uploads the file at path without a dialog.
func (o *Ops) EncryptPath(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", o.fail("Encryption error: "+err.Error(), err)
	}
	name, err := o.backend.EncryptFile(ctx, filepath.Base(path), data)
	if err != nil {
		var rejected *backend.RejectedError
		if errors.As(err, &rejected) {
			return "", o.fail("Encryption failed: "+rejected.Msg, err)
		}
		return "", o.fail("Encryption error: "+err.Error(), err)
	}
	o.log.Info("file encrypted", "vault_filename", name)
	return "Encrypted and saved as: " + name, nil
}

// List returns vault artifact names. An empty vault is reported as an error.
func (o *Ops) List(ctx context.Context) ([]string, error) {
	files, err := o.backend.ListVault(ctx)
	if err != nil {
		var rejected *backend.RejectedError
		if errors.As(err, &rejected) {
			return nil, o.fail("Failed to fetch vault list.", err)
		}
		return nil, o.fail("Decryption error: "+err.Error(), err)
	}
	if len(files) == 0 {
		return nil, &FileOperationError{Msg: "Vault is empty."}
	}
	return files, nil
}

// Decrypt fetches an artifact, asks where to save it and writes it verbatim.
func (o *Ops) Decrypt(ctx context.Context, vaultFilename string) (string, error) {
	data, err := o.fetch(ctx, vaultFilename)
	if err != nil {
		return "", err
	}
	path, ok, err := o.dialogs.SaveFile(ctx, SuggestSaveName(vaultFilename))
	if err != nil {
		return "", o.fail("Decryption error: "+err.Error(), err)
	}
	if !ok || path == "" {
		return "", &FileOperationError{Msg: "Save cancelled."}
	}
	return o.write(path, data)
}

// DecryptTo fetches an artifact and writes it to path without a dialog.
func (o *Ops) DecryptTo(ctx context.Context, vaultFilename, path string) (string, error) {
	data, err := o.fetch(ctx, vaultFilename)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = SuggestSaveName(vaultFilename)
	}
	return o.write(path, data)
}

// SuggestSaveName strips the vault suffix from an artifact name.
func SuggestSaveName(vaultFilename string) string {
	return strings.TrimSuffix(vaultFilename, Suffix)
}

func (o *Ops) fetch(ctx context.Context, vaultFilename string) ([]byte, error) {
	data, err := o.backend.DecryptFile(ctx, vaultFilename)
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			return nil, o.fail("Decrypt failed: "+statusErr.Msg, err)
		}
		return nil, o.fail("Decryption error: "+err.Error(), err)
	}
	return data, nil
}

func (o *Ops) write(path string, data []byte) (string, error) {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", o.fail("Decryption error: "+err.Error(), err)
	}
	o.log.Info("file decrypted", "path", path, "bytes", len(data))
	return "Saved decrypted file: " + path, nil
}

func (o *Ops) fail(msg string, err error) error {
	o.log.Error("vault operation failed", "err", err)
	return &FileOperationError{Msg: msg, Err: fmt.Errorf("vault: %w", err)}
}

package approval

import (
	"errors"
	"fmt"

	"github.com/sadopc/chorechart/internal/store"
)

// MinPasswordLength is the shortest parent password accepted.
const MinPasswordLength = 4

var (
	ErrPasswordTooShort = errors.New("password must be at least 4 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

func (w *Workflow) HasParentPassword() (bool, error) {
	pw, err := store.ParentPassword(w.store)
	if err != nil {
		return false, err
	}
	return pw != "", nil
}

// SetParentPassword stores pw after checking it against confirm.
func (w *Workflow) SetParentPassword(pw, confirm string) error {
	if len(pw) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if pw != confirm {
		return ErrPasswordMismatch
	}
	if err := store.SaveParentPassword(w.store, pw); err != nil {
		return fmt.Errorf("save parent password: %w", err)
	}
	w.logger.Info("parent password set")
	return nil
}

// CheckParentPassword reports whether pw matches the stored password. It is
// false when no password has been set.
func (w *Workflow) CheckParentPassword(pw string) (bool, error) {
	stored, err := store.ParentPassword(w.store)
	if err != nil {
		return false, err
	}
	return stored != "" && pw == stored, nil
}

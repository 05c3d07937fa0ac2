package model

import "errors"

// Ошибки предметной области. Вызывающий код проверяет их через errors.Is,
// сервисы оборачивают их контекстом через fmt.Errorf("...: %w", err).
var (
	ErrNotFound        = errors.New("not found")
	ErrNotOwner        = errors.New("slot is not owned by caller")
	ErrNotAuthorized   = errors.New("caller is not the recipient of the request")
	ErrSelfTrade       = errors.New("cannot trade with yourself")
	ErrInvalidState    = errors.New("invalid state")
	ErrAlreadyResolved = errors.New("swap request already resolved")
	ErrConflict        = errors.New("concurrent modification")
	ErrStateCorrupted  = errors.New("state corrupted")
	ErrInvalidInput    = errors.New("invalid input")
)

// IsRetryable сообщает, имеет ли смысл повторить операцию целиком.
// Повторяемой считается только ErrConflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

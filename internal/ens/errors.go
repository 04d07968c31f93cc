package ens

import (
	"errors"
	"fmt"
)

// ErrRecordNotSet: у имени есть резолвер, но текстовая запись пустая.
// Это семантический исход, не повод для ретрая.
var ErrRecordNotSet = errors.New("ens: text record not set")

// ResolutionKind классифицирует сбои резолвинга имени
type ResolutionKind string

const (
	KindNotFound    ResolutionKind = "NOT_FOUND"   // Имя не зарегистрировано / нет резолвера
	KindUnavailable ResolutionKind = "UNAVAILABLE" // RPC недоступен, breaker открыт, мусорный ответ
	KindTimeout     ResolutionKind = "TIMEOUT"
)

// ResolutionError: сбой внешней системы имен. Отличается от PolicyError:
// "политика не настроена" vs "сеть/сервис недоступны".
type ResolutionError struct {
	Kind ResolutionKind
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ens: resolve %s: %s: %v", e.Name, e.Kind, e.Err)
	}
	return fmt.Sprintf("ens: resolve %s: %s", e.Name, e.Kind)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Transient: можно ли повторить запрос
func (e *ResolutionError) Transient() bool {
	return e.Kind == KindUnavailable || e.Kind == KindTimeout
}

// IsTransient: true только для временных сбоев резолвинга.
func IsTransient(err error) bool {
	var rErr *ResolutionError
	if errors.As(err, &rErr) {
		return rErr.Transient()
	}
	return false
}

package policy

import "fmt"

// ErrorCode: семантическая причина, по которой политику нельзя собрать
type ErrorCode string

const (
	CodeMissingMaxSpend       ErrorCode = "MISSING_MAX_SPEND"
	CodeInvalidMaxSpend       ErrorCode = "INVALID_MAX_SPEND"
	CodeMissingAllowedActions ErrorCode = "MISSING_ALLOWED_ACTIONS"
	CodeEmptyAllowedActions   ErrorCode = "EMPTY_ALLOWED_ACTIONS"
)

// PolicyError: записи отсутствуют или битые. Не ретраится, нужно исправить данные в ENS.
type PolicyError struct {
	Code  ErrorCode
	Name  string // ENS-имя
	Key   string // Ключ текстовой записи
	Value string // Сырой ответ, если был
}

func (e *PolicyError) Error() string {
	switch e.Code {
	case CodeMissingMaxSpend, CodeMissingAllowedActions:
		return fmt.Sprintf("policy %s: %s: text record %q is not set", e.Name, e.Code, e.Key)
	case CodeInvalidMaxSpend:
		return fmt.Sprintf("policy %s: %s: %q=%q is not a non-negative decimal", e.Name, e.Code, e.Key, e.Value)
	case CodeEmptyAllowedActions:
		return fmt.Sprintf("policy %s: %s: %q=%q contains no actions", e.Name, e.Code, e.Key, e.Value)
	default:
		return fmt.Sprintf("policy %s: %s", e.Name, e.Code)
	}
}

package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

var (
	errForbidden      = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	errFolderNotFound = domainError(http.StatusNotFound, "NOT_FOUND", "Folder not found", nil)
	errItemNotFound   = domainError(http.StatusNotFound, "NOT_FOUND", "Item not found", nil)
)

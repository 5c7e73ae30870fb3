package domain

import "errors"

var (
	ErrStateNotFound      = errors.New("oauth state not found")
	ErrCredentialNotFound = errors.New("credential not found")
)

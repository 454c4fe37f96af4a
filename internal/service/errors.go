package service

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// statuses; anything else surfaces as a generic backend failure.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotParticipant   = errors.New("you are not a member of this conversation")
	ErrHandshakePending = errors.New("waiting for the other side to accept")
	ErrBlocked          = errors.New("this user is not reachable")
	ErrEditLimit        = errors.New("message can no longer be edited")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrInvalidTarget    = errors.New("report needs exactly one target")
)

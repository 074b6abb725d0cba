package dao

import "errors"

// Error classes. Every error returned by the engine wraps one of them, so
// callers can tell rejected input from missing permissions with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrProof         = errors.New("proof error")
)

var (
	ErrNotMember              = classError(ErrAuthorization, "not a DAO member")
	ErrAlreadyMember          = classError(ErrValidation, "already a DAO member")
	ErrInvalidProposalID      = classError(ErrValidation, "invalid proposal id")
	ErrEmptyDescription       = classError(ErrValidation, "empty proposal description")
	ErrVotingDurationTooShort = classError(ErrValidation, "voting duration too short")
	ErrVotingNotActive        = classError(ErrValidation, "voting is not active")
	ErrAlreadyVoted           = classError(ErrValidation, "already voted")
	ErrAlreadyExecuted        = classError(ErrValidation, "proposal already executed")
	ErrVotingNotEnded         = classError(ErrValidation, "voting has not ended")
	ErrInvalidProof           = classError(ErrProof, "invalid encrypted ballot proof")
)

type daoError struct {
	class error
	msg   string
}

func classError(class error, msg string) error {
	return &daoError{class: class, msg: msg}
}

func (e *daoError) Error() string { return e.msg }

func (e *daoError) Unwrap() error { return e.class }

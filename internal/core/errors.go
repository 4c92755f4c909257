package core

import "errors"

// Failure kinds recognized by the execution engine. All of them are
// recovered locally: a run ends failed with a log entry, and none of them
// escape Run. Only a persistence failure on the final save is returned to
// the caller, because memory and disk have diverged at that point.
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrAccountNotFound     = errors.New("social account not found")
	ErrDriverInit          = errors.New("automation driver init failed")
	ErrLoginFailed         = errors.New("login failed")
	ErrActionFailed        = errors.New("action failed")
	ErrUnsupportedTaskType = errors.New("unsupported task type")
)

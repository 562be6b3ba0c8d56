package game

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoundNotFound = errors.New("round not found")
	ErrForbidden     = errors.New("forbidden")
	ErrBadRequest    = errors.New("bad request")
	ErrConflict      = errors.New("conflict")
)

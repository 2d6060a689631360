package model

import "errors"

var (
	ErrInvalidNode       = errors.New("model: invalid node")
	ErrInvalidGroup      = errors.New("model: invalid group")
	ErrInvalidConnection = errors.New("model: invalid connection")
	ErrInvalidPeerIntent = errors.New("model: invalid peer intent")
)

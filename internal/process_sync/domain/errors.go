package domain

import "errors"

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrCacheMiss       = errors.New("process tree not cached")
	ErrInvalidTree     = errors.New("invalid process tree")
	ErrRunInProgress   = errors.New("synchronization run already in progress")
	ErrRunNotFound     = errors.New("synchronization run not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRecordNotFound  = errors.New("record not found")
	ErrRecordRejected  = errors.New("record rejected by repository")
)

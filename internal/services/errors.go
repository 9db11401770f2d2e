// Package services holds the application logic of the feed: the account
// directory, the read-through tweet cache, the aggregator, and the
// presentation formatter.
//
// This file re-exports the error taxonomy so handlers can depend on the
// services package alone. Translation into HTTP status codes happens in the
// handler layer.
package services

import "github.com/tbourn/go-tweet-feed/internal/domain"

var (
	// ErrValidation is returned for empty or malformed handles.
	ErrValidation = domain.ErrValidation

	// ErrNotFound is returned when a handle does not resolve upstream, or
	// when removing an account that is not registered.
	ErrNotFound = domain.ErrNotFound

	// ErrUpstream is returned by the single-handle path when the fetcher
	// fails for any reason other than not-found.
	ErrUpstream = domain.ErrUpstream

	// ErrStorage is returned by directory operations when the key/value
	// store cannot be read or written. Cache operations never return it.
	ErrStorage = domain.ErrStorage

	// ErrDuplicate is returned when adding a handle that is already
	// registered under any casing.
	ErrDuplicate = domain.ErrDuplicate
)

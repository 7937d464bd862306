package chat

import "errors"

// Request errors. Every one of them is reported to the client as an ERROR frame;
// none closes the connection.
var (
	ErrAuthentication      = errors.New("authentication failed")
	ErrNoteNotFound        = errors.New("note not found")
	ErrAssistantResolution = errors.New("could not resolve assistant")
	ErrThreadCreation      = errors.New("could not create thread")
	ErrPersistence         = errors.New("could not save assistant reference on note")
	ErrProtocolState       = errors.New("protocol state error")
	ErrUnrecognizedRequest = errors.New("unrecognized request")
	ErrMalformedRequest    = errors.New("malformed request")
	ErrRateLimited         = errors.New("too many messages, slow down")
)

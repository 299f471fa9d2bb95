package service

import "OpenCollab/pkg/xerr"

var (
	ErrNotificationNotFound = xerr.New(xerr.NotFound, "notification not found")
	ErrNotOwner             = xerr.New(xerr.Forbidden, "not the owner of this notification")
	ErrAlreadyRead          = xerr.New(xerr.Conflict, "notification already read")
	ErrSenderNotFound       = xerr.New(xerr.BadRequest, "sender does not exist")
	ErrRecipientNotFound    = xerr.New(xerr.BadRequest, "recipient does not exist")
	ErrUnknown              = xerr.New(xerr.InternalServerError, "unknown error")
	ErrDeliveryFailed       = xerr.New(xerr.BadGateway, "notification saved but delivery failed")
	ErrNoCredential         = xerr.New(xerr.Unauthorized, "no credential supplied")
	ErrAmbiguousCredential  = xerr.New(xerr.Unauthorized, "credential supplied twice")
	ErrInvalidCredential    = xerr.New(xerr.Unauthorized, "invalid or expired credential")
)

func validationError(err error) *xerr.CodeError {
	return xerr.New(xerr.BadRequest, err.Error())
}

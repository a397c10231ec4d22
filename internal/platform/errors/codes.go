// Package errors provides structured error handling for MeetGrid services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionInvalid Code = "SESSION_INVALID"
	CodeSessionExpired Code = "SESSION_EXPIRED"

	// Authorization errors
	CodeAccessDenied Code = "ACCESS_DENIED"

	// Validation errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Event errors
	CodeEventTitleEmpty      Code = "EVENT_TITLE_EMPTY"
	CodeEventInvalidTimeSpan Code = "EVENT_INVALID_TIME_SPAN"
	CodeEventGroupNameEmpty  Code = "EVENT_GROUP_NAME_EMPTY"

	// User group errors
	CodeUserGroupNameEmpty Code = "USER_GROUP_NAME_EMPTY"

	// Access mutation errors
	CodeOwnerUnremovable       Code = "OWNER_UNREMOVABLE"
	CodePersonalGroupProtected Code = "PERSONAL_GROUP_PROTECTED"
	CodeTransfereeNotMember    Code = "TRANSFEREE_NOT_MEMBER"
	CodeDestinationNotVisible  Code = "DESTINATION_NOT_VISIBLE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"

	// Internal errors
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps an error code to an HTTP status code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSessionInvalid, CodeSessionExpired:
		return http.StatusUnauthorized
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalidArgument,
		CodeEventTitleEmpty,
		CodeEventInvalidTimeSpan,
		CodeEventGroupNameEmpty,
		CodeUserGroupNameEmpty,
		CodeOwnerUnremovable,
		CodePersonalGroupProtected,
		CodeTransfereeNotMember,
		CodeDestinationNotVisible:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package domain

import "cassette_tracking_backend/platform/apperr"

// ValidateReplacement checks the replacement coordinator's preconditions
// against facts the repository gathered inside the transaction. Order
// matters: a scrapped cassette reports AlreadyReplaced before anything else,
// so a retried replacement is distinguishable from a misconfigured one.
func ValidateReplacement(oldStatus Status, hasReplacementRequest, serialInUse bool) error {
	if oldStatus == StatusScrapped {
		return apperr.Conflict("cassette has already been replaced").
			WithCode(apperr.CodeAlreadyReplaced)
	}

	if !hasReplacementRequest {
		return apperr.Conflict("ticket has no replacement request for this cassette").
			WithCode(apperr.CodeNoReplacementRequest)
	}

	if serialInUse {
		return apperr.Conflict("serial number is already in use").
			WithCode(apperr.CodeDuplicateSerial)
	}

	// SCRAPPED must be reached through the state machine, so replacement is
	// only legal from a status with an edge to SCRAPPED.
	return ValidateTransition(oldStatus, StatusScrapped)
}

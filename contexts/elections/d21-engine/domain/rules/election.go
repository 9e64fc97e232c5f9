package rules

import (
	"time"

	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
)

// ValidateElectionConfig checks initialization input in the order the
// engine reports it: time range, winners, then text bounds.
func ValidateElectionConfig(startTime time.Time, endTime time.Time, numWinners uint8, name string, description string) error {
	if !startTime.Before(endTime) {
		return domainerrors.ErrInvalidTimeRange
	}
	if numWinners == 0 {
		return domainerrors.ErrInvalidWinnerCount
	}
	return ValidateText(name, description)
}

// ValidateText enforces the byte length bounds shared by elections and
// candidates.
func ValidateText(name string, description string) error {
	if len(name) > entities.MaxNameLength {
		return domainerrors.ErrNameTooLong
	}
	if len(description) > entities.MaxDescriptionLength {
		return domainerrors.ErrDescriptionTooLong
	}
	return nil
}

package domain

import "time"

// Stage identifies where a conversation sits in the booking flow.
type Stage string

const (
	StageGreeting             Stage = "greeting"
	StageDestinationSelection Stage = "destination_selection"
	StagePackageOverview      Stage = "package_overview"
	StageReadyConfirmation    Stage = "ready_confirmation"
	StageCollectName          Stage = "collect_name"
	StageCollectPartySize     Stage = "collect_party_size"
	StageCollectTravelDate    Stage = "collect_travel_date"
	StageCollectRequirements  Stage = "collect_requirements"
	StageConfirmSummary       Stage = "confirm_summary"
	StageAwaitingQuote        Stage = "awaiting_quote"
	StageCompleted            Stage = "completed"
)

// Valid reports whether s is a known stage value.
func (s Stage) Valid() bool {
	switch s {
	case StageGreeting, StageDestinationSelection, StagePackageOverview,
		StageReadyConfirmation, StageCollectName, StageCollectPartySize,
		StageCollectTravelDate, StageCollectRequirements, StageConfirmSummary,
		StageAwaitingQuote, StageCompleted:
		return true
	}
	return false
}

// Terminal reports whether the conversation has finished the flow.
func (s Stage) Terminal() bool {
	return s == StageCompleted
}

// ConversationState tracks a user's position in the flow.
type ConversationState struct {
	UserID        string    `json:"user_id"`
	Stage         Stage     `json:"stage"`
	LastMessageAt time.Time `json:"last_message_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewConversationState starts a fresh conversation at the greeting stage.
func NewConversationState(userID string, now time.Time) *ConversationState {
	return &ConversationState{
		UserID:    userID,
		Stage:     StageGreeting,
		UpdatedAt: now,
	}
}

// Transition moves the conversation to a new stage.
func (c *ConversationState) Transition(to Stage, now time.Time) {
	c.Stage = to
	c.UpdatedAt = now
}

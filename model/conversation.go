package model

import "time"

// Conversation is the projection of a two-party chat that the confirmation
// engine needs: the fixed participant pair and, when the conversation was
// started from a listing, the listing and its owner.
type Conversation struct {
	ID             int64     `json:"-"`
	ConversationID string    `json:"conversation_id"`
	ParticipantA   string    `json:"participant_a"`
	ParticipantB   string    `json:"participant_b"`
	SubjectID      string    `json:"subject_id,omitempty"`
	SubjectOwner   string    `json:"subject_owner,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two fixed participants.
// The listing owner counts as a participant for conversations created from a
// listing, since older conversations recorded the owner only on the listing.
func (c *Conversation) HasParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return c.ParticipantA == userID || c.ParticipantB == userID || (c.SubjectOwner != "" && c.SubjectOwner == userID)
}

// OtherParticipant returns the participant opposite userID, or an empty
// string when userID is not part of the conversation.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	if c.SubjectOwner != "" && c.SubjectOwner == userID {
		// Legacy rows recorded the listing owner only on the listing; the
		// conversation starter is always participant A there.
		return c.ParticipantA
	}
	return ""
}

package transcript

import (
	"strings"

	"interview-session-service/internal/models"
)

// NormalizeSpeaker maps the speaker labels used by the different producers
// onto the two transcript speakers. Unrecognised labels map to SpeakerUnknown.
func NormalizeSpeaker(label string) models.Speaker {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "ai", "assistant", "model", "agent":
		return models.SpeakerAI
	case "user", "candidate":
		return models.SpeakerUser
	default:
		return models.SpeakerUnknown
	}
}

// SpeakerFrom picks the first non-empty label among the speaker, sender and
// role fields of a record and normalises it.
func SpeakerFrom(speaker, sender, role string) models.Speaker {
	for _, label := range []string{speaker, sender, role} {
		if strings.TrimSpace(label) != "" {
			return NormalizeSpeaker(label)
		}
	}
	return models.SpeakerUnknown
}

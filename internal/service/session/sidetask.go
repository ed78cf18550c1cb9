package session

import (
	"context"
	"fmt"

	"interview-session-service/internal/models"
	"interview-session-service/internal/service/challenge"
	"interview-session-service/internal/service/transcript"
)

// activateChallenge pauses the interview for a coding side-task. It refuses
// unless the session is ACTIVE, which leaves the side-task queue untouched.
func (c *Controller) activateChallenge(item models.SideTaskItem) error {
	if err := c.transitionFrom(StatusPaused, "coding challenge", StatusActive); err != nil {
		return fmt.Errorf("pause for challenge: %w", err)
	}
	c.deps.Transport.SetCaptureEnabled(false)
	if c.deps.OnChallenge != nil {
		c.deps.OnChallenge(item)
	}
	return nil
}

// ActiveChallenge returns the coding side-task in progress.
func (c *Controller) ActiveChallenge() (models.SideTaskItem, bool) {
	c.mu.Lock()
	det := c.detector
	c.mu.Unlock()
	if det == nil {
		return models.SideTaskItem{}, false
	}
	return det.Active()
}

// SubmitChallenge hands the candidate's solution to the interviewer and
// resumes the interview.
func (c *Controller) SubmitChallenge(ctx context.Context, code, language string) (models.CodingSubmission, error) {
	det, err := c.liveDetector()
	if err != nil {
		return models.CodingSubmission{}, err
	}
	sub, msg, err := det.Submit(code, language)
	if err != nil {
		return models.CodingSubmission{}, err
	}
	return sub, c.resumeFromChallenge(ctx, sub, msg)
}

// AbortChallenge skips the coding side-task and resumes the interview.
func (c *Controller) AbortChallenge(ctx context.Context) (models.CodingSubmission, error) {
	det, err := c.liveDetector()
	if err != nil {
		return models.CodingSubmission{}, err
	}
	sub, msg, err := det.Abort()
	if err != nil {
		return models.CodingSubmission{}, err
	}
	return sub, c.resumeFromChallenge(ctx, sub, msg)
}

func (c *Controller) liveDetector() (*challenge.Detector, error) {
	c.mu.Lock()
	det := c.detector
	c.mu.Unlock()
	if det == nil {
		return nil, challenge.ErrNoActiveChallenge
	}
	return det, nil
}

// resumeFromChallenge records the outcome, adds it to the transcript as the
// candidate's turn, re-enables capture and tells the interviewer.
func (c *Controller) resumeFromChallenge(ctx context.Context, sub models.CodingSubmission, msg string) error {
	c.mu.Lock()
	c.submissions = append(c.submissions, sub)
	c.mu.Unlock()

	c.ingest(ctx, transcript.Fragment{
		Source:   transcript.SourceSynthesized,
		Speaker:  models.SpeakerUser,
		Text:     msg,
		Complete: true,
		At:       c.clock.Now(),
	})

	c.deps.Transport.SetCaptureEnabled(true)
	if err := c.transitionFrom(StatusActive, "coding challenge finished", StatusPaused); err != nil {
		c.logger.Debug().Str("status", c.Status().String()).Msg("Side-task finished outside PAUSED")
	}
	return c.SendText(msg)
}

package model

import (
	"strings"
	"time"
)

// Step is the position of an operator inside a flow.
type Step string

const (
	StepIdle                  Step = "idle"
	StepAwaitingDraft         Step = "awaiting_draft"
	StepAwaitingRewriteChoice Step = "awaiting_rewrite_choice"
	StepAwaitingPublishChoice Step = "awaiting_publish_choice"
	StepAwaitingTime          Step = "awaiting_time"

	StepEditAwaitingCategory Step = "edit_awaiting_category"
	StepEditAwaitingPick     Step = "edit_awaiting_pick"
	StepEditAwaitingMode     Step = "edit_awaiting_mode"
	StepEditAwaitingText     Step = "edit_awaiting_text"
	StepEditAwaitingConfirm  Step = "edit_awaiting_confirm"
)

var allSteps = []Step{
	StepIdle, StepAwaitingDraft, StepAwaitingRewriteChoice, StepAwaitingPublishChoice, StepAwaitingTime,
	StepEditAwaitingCategory, StepEditAwaitingPick, StepEditAwaitingMode, StepEditAwaitingText, StepEditAwaitingConfirm,
}

func (s Step) Valid() bool {
	for _, v := range allSteps {
		if v == s {
			return true
		}
	}
	return false
}

// Choice is a button an operator can press. Each step accepts a fixed subset.
type Choice string

const (
	ChoiceKeep       Choice = "compose:keep"
	ChoiceRewrite    Choice = "compose:rewrite"
	ChoicePublishNow Choice = "publish:now"
	ChoiceSchedule   Choice = "publish:schedule"

	ChoiceCategorySent      Choice = "edit:cat:sent"
	ChoiceCategoryScheduled Choice = "edit:cat:scheduled"
	ChoicePick              Choice = "edit:pick"
	ChoiceEditManual        Choice = "edit:mode:manual"
	ChoiceEditRewrite       Choice = "edit:mode:rewrite"
	ChoiceSave              Choice = "edit:save"
	ChoiceCancel            Choice = "edit:cancel"
)

var choiceLabels = map[Choice]string{
	ChoiceKeep:              "Keep as-is",
	ChoiceRewrite:           "Rewrite via language model",
	ChoicePublishNow:        "Publish now",
	ChoiceSchedule:          "Schedule",
	ChoiceCategorySent:      "Sent posts",
	ChoiceCategoryScheduled: "Scheduled posts",
	ChoiceEditManual:        "Manual edit",
	ChoiceEditRewrite:       "Rewrite via language model",
	ChoiceSave:              "Save",
	ChoiceCancel:            "Cancel",
}

func (c Choice) Label() string { return choiceLabels[c] }

// Choices lists the choices a step accepts, in display order.
func (s Step) Choices() []Choice {
	switch s {
	case StepAwaitingRewriteChoice:
		return []Choice{ChoiceKeep, ChoiceRewrite}
	case StepAwaitingPublishChoice:
		return []Choice{ChoicePublishNow, ChoiceSchedule}
	case StepEditAwaitingCategory:
		return []Choice{ChoiceCategorySent, ChoiceCategoryScheduled}
	case StepEditAwaitingPick:
		return []Choice{ChoicePick}
	case StepEditAwaitingMode:
		return []Choice{ChoiceEditManual, ChoiceEditRewrite}
	case StepEditAwaitingConfirm:
		return []Choice{ChoiceSave, ChoiceCancel}
	default:
		return nil
	}
}

// Accepts reports whether c is valid from s.
func (s Step) Accepts(c Choice) bool {
	for _, v := range s.Choices() {
		if v == c {
			return true
		}
	}
	return false
}

// ChoiceFromLabel resolves typed text against the labels offered in s only,
// so identical labels in different steps never collide.
func (s Step) ChoiceFromLabel(text string) (Choice, bool) {
	text = strings.TrimSpace(text)
	for _, c := range s.Choices() {
		if l := c.Label(); l != "" && strings.EqualFold(l, text) {
			return c, true
		}
	}
	return "", false
}

// ButtonData encodes a choice with an optional argument as callback data.
func ButtonData(c Choice, arg string) string {
	if arg == "" {
		return string(c)
	}
	return string(c) + ":" + arg
}

// ParseButtonData splits callback data into a choice and its argument.
func ParseButtonData(data string) (Choice, string) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, string(ChoicePick)+":") {
		return ChoicePick, strings.TrimPrefix(data, string(ChoicePick)+":")
	}
	return Choice(data), ""
}

// Draft accumulates flow data between steps.
type Draft struct {
	OriginalText      string     `json:"original_text,omitempty"`
	PostText          string     `json:"post_text,omitempty"`
	TargetPostID      int64      `json:"target_post_id,omitempty"`
	EditCategory      PostStatus `json:"edit_category,omitempty"`
	EditCandidateText string     `json:"edit_candidate_text,omitempty"`
}

// Session is the per-operator conversational state.
type Session struct {
	OperatorID int64     `json:"operator_id"`
	ChatID     int64     `json:"chat_id"`
	Step       Step      `json:"step"`
	Draft      Draft     `json:"draft"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewSession(operatorID, chatID int64, step Step) *Session {
	return &Session{
		OperatorID: operatorID,
		ChatID:     chatID,
		Step:       step,
		UpdatedAt:  time.Now(),
	}
}

// Advance moves the session to step and refreshes UpdatedAt.
func (s *Session) Advance(step Step) {
	s.Step = step
	s.UpdatedAt = time.Now()
}

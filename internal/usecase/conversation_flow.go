// File: internal/usecase/conversation_flow.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	"telegram-channel-publisher/internal/infra/logging"
)

// dispatch runs the handler of the session's current step only.
func (uc *conversationUC) dispatch(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	switch sess.Step {
	case model.StepAwaitingDraft:
		return uc.onDraft(ctx, sess, ev)
	case model.StepAwaitingRewriteChoice:
		return uc.onRewriteChoice(ctx, sess, ev)
	case model.StepAwaitingPublishChoice:
		return uc.onPublishChoice(ctx, sess, ev)
	case model.StepAwaitingTime:
		return uc.onTime(ctx, sess, ev)
	case model.StepEditAwaitingCategory:
		return uc.onEditCategory(ctx, sess, ev)
	case model.StepEditAwaitingPick:
		return uc.onEditPick(ctx, sess, ev)
	case model.StepEditAwaitingMode:
		return uc.onEditMode(ctx, sess, ev)
	case model.StepEditAwaitingText:
		return uc.onEditText(ctx, sess, ev)
	case model.StepEditAwaitingConfirm:
		return uc.onEditConfirm(ctx, sess, ev)
	default:
		return nil, nil
	}
}

// --- compose flow ---

func (uc *conversationUC) onDraft(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	if ev.Kind != EventText {
		return uc.say(uc.tr.T("compose.ask_draft")), nil
	}
	if h, m, body, ok := model.SplitQuickSchedule(ev.Payload); ok {
		return uc.schedule(ctx, sess, body, h, m, "compose.quick_scheduled")
	}
	text := strings.TrimSpace(ev.Payload)
	if text == "" {
		return uc.say(uc.tr.T("compose.empty_draft")), nil
	}
	sess.Draft = model.Draft{OriginalText: text}
	if err := uc.save(ctx, sess, model.StepAwaitingRewriteChoice); err != nil {
		return nil, err
	}
	return uc.prompt(model.StepAwaitingRewriteChoice, uc.tr.T("compose.choose_rewrite")), nil
}

func (uc *conversationUC) onRewriteChoice(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	c, _, ok := uc.resolve(sess.Step, ev)
	if !ok {
		return uc.prompt(sess.Step, uc.tr.T("compose.choose_rewrite")), nil
	}

	var replies []Reply
	switch c {
	case model.ChoiceKeep:
		sess.Draft.PostText = sess.Draft.OriginalText
	case model.ChoiceRewrite:
		out := uc.rewriter.Rewrite(ctx, sess.Draft.OriginalText, uc.cfg.Style)
		sess.Draft.PostText = out
		replies = append(replies, Reply{Text: uc.tr.T("compose.rewritten", out)})
		if model.IsRewriteFailure(out) {
			replies = append(replies, Reply{Text: uc.tr.T("compose.rewrite_failed")})
		}
	}
	if err := uc.save(ctx, sess, model.StepAwaitingPublishChoice); err != nil {
		return nil, err
	}
	return append(replies, uc.prompt(model.StepAwaitingPublishChoice, uc.tr.T("compose.choose_publish"))...), nil
}

func (uc *conversationUC) onPublishChoice(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	c, _, ok := uc.resolve(sess.Step, ev)
	if !ok {
		return uc.prompt(sess.Step, uc.tr.T("compose.choose_publish")), nil
	}

	if c == model.ChoiceSchedule {
		if err := uc.save(ctx, sess, model.StepAwaitingTime); err != nil {
			return nil, err
		}
		return uc.say(uc.tr.T("compose.ask_time")), nil
	}

	post, err := uc.publisher.PublishNow(ctx, sess.Draft.PostText)
	switch {
	case errors.Is(err, domain.ErrDelivery):
		// Session stays here so the operator can retry or schedule instead.
		return uc.prompt(sess.Step, uc.tr.T("compose.delivery_failed", err.Error())), nil
	case errors.Is(err, domain.ErrValidation):
		if err := uc.save(ctx, sess, model.StepAwaitingDraft); err != nil {
			return nil, err
		}
		return uc.say(uc.tr.T("compose.empty_draft")), nil
	case err != nil:
		// The message is already in the channel; a second press must not resend it.
		if cerr := uc.sessions.Clear(ctx, sess.OperatorID); cerr != nil {
			logging.With(ctx, uc.log).Error().Err(cerr).Msg("failed to close session after unrecorded publish")
		}
		return nil, err
	}

	if err := uc.sessions.Clear(ctx, sess.OperatorID); err != nil {
		return nil, err
	}
	logging.With(logging.WithPostID(ctx, post.ID), uc.log).Info().Msg("compose flow published")
	return uc.say(uc.tr.T("compose.published")), nil
}

func (uc *conversationUC) onTime(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	if ev.Kind != EventText {
		return uc.say(uc.tr.T("compose.ask_time")), nil
	}
	h, m, err := model.ParseClock(ev.Payload)
	if err != nil {
		return uc.say(uc.tr.T("compose.bad_time")), nil
	}
	return uc.schedule(ctx, sess, sess.Draft.PostText, h, m, "compose.scheduled")
}

func (uc *conversationUC) schedule(ctx context.Context, sess *model.Session, text string, h, m int, doneKey string) ([]Reply, error) {
	runAt := model.NextOccurrence(uc.now(), h, m)
	post, err := uc.publisher.SchedulePost(ctx, text, runAt)
	if errors.Is(err, domain.ErrValidation) {
		return uc.say(uc.tr.T("compose.empty_draft")), nil
	}
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.Clear(ctx, sess.OperatorID); err != nil {
		return nil, err
	}
	logging.With(logging.WithPostID(ctx, post.ID), uc.log).Info().Time("run_at", runAt).Msg("compose flow scheduled")
	return uc.say(uc.tr.T(doneKey, uc.formatTime(runAt))), nil
}

// --- edit flow ---

func (uc *conversationUC) onEditCategory(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	c, _, ok := uc.resolve(sess.Step, ev)
	if !ok {
		return uc.prompt(sess.Step, uc.tr.T("edit.choose_category")), nil
	}
	status := model.PostStatusSent
	if c == model.ChoiceCategoryScheduled {
		status = model.PostStatusScheduled
	}

	posts, err := uc.publisher.Recent(ctx, status, uc.cfg.ListLimit)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		if err := uc.sessions.Clear(ctx, sess.OperatorID); err != nil {
			return nil, err
		}
		return uc.say(uc.tr.T("edit.no_posts", uc.tr.T("status."+string(status)))), nil
	}

	sess.Draft = model.Draft{EditCategory: status}
	if err := uc.save(ctx, sess, model.StepEditAwaitingPick); err != nil {
		return nil, err
	}
	return []Reply{{Text: uc.tr.T("edit.choose_post"), Markup: pickKeyboard(posts)}}, nil
}

func pickKeyboard(posts []*model.Post) *adapter.ReplyMarkup {
	rows := make([][]adapter.Button, 0, len(posts))
	for _, p := range posts {
		id := strconv.FormatInt(p.ID, 10)
		label := fmt.Sprintf("#%d %s", p.ID, preview(firstLine(p.Text), 40))
		rows = append(rows, []adapter.Button{{Text: label, Data: model.ButtonData(model.ChoicePick, id)}})
	}
	return &adapter.ReplyMarkup{Buttons: rows, IsInline: true}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// pickedID accepts a pick button or a typed "#17" / "17".
func pickedID(ev Event) (int64, bool) {
	arg := strings.TrimSpace(ev.Payload)
	if ev.Kind == EventButton {
		c, a := model.ParseButtonData(ev.Payload)
		if c != model.ChoicePick {
			return 0, false
		}
		arg = a
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	return id, err == nil && id > 0
}

func (uc *conversationUC) onEditPick(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	id, ok := pickedID(ev)
	if !ok {
		return uc.say(uc.tr.T("edit.bad_pick")), nil
	}
	post, err := uc.publisher.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.say(uc.tr.T("edit.bad_pick")), nil
	}
	if err != nil {
		return nil, err
	}
	if post.Status != sess.Draft.EditCategory {
		return uc.say(uc.tr.T("edit.bad_pick")), nil
	}

	sess.Draft.TargetPostID = post.ID
	if err := uc.save(ctx, sess, model.StepEditAwaitingMode); err != nil {
		return nil, err
	}
	return uc.prompt(model.StepEditAwaitingMode, uc.tr.T("edit.choose_mode", post.Text)), nil
}

func (uc *conversationUC) onEditMode(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	c, _, ok := uc.resolve(sess.Step, ev)
	if !ok {
		return uc.prompt(sess.Step, uc.tr.T("edit.choose_mode", "#"+strconv.FormatInt(sess.Draft.TargetPostID, 10))), nil
	}

	if c == model.ChoiceEditManual {
		if err := uc.save(ctx, sess, model.StepEditAwaitingText); err != nil {
			return nil, err
		}
		return uc.say(uc.tr.T("edit.ask_text")), nil
	}

	post, err := uc.publisher.Get(ctx, sess.Draft.TargetPostID)
	if err != nil {
		return nil, err
	}
	candidate := uc.rewriter.Rewrite(ctx, post.Text, uc.cfg.Style)
	return uc.confirm(ctx, sess, candidate)
}

func (uc *conversationUC) onEditText(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	text := strings.TrimSpace(ev.Payload)
	if ev.Kind != EventText || text == "" {
		return uc.say(uc.tr.T("edit.ask_text")), nil
	}
	return uc.confirm(ctx, sess, text)
}

func (uc *conversationUC) confirm(ctx context.Context, sess *model.Session, candidate string) ([]Reply, error) {
	sess.Draft.EditCandidateText = candidate
	if err := uc.save(ctx, sess, model.StepEditAwaitingConfirm); err != nil {
		return nil, err
	}
	return uc.prompt(model.StepEditAwaitingConfirm, uc.tr.T("edit.confirm", candidate)), nil
}

func (uc *conversationUC) onEditConfirm(ctx context.Context, sess *model.Session, ev Event) ([]Reply, error) {
	c, _, ok := uc.resolve(sess.Step, ev)
	if !ok {
		return uc.prompt(sess.Step, uc.tr.T("edit.confirm", sess.Draft.EditCandidateText)), nil
	}

	if c == model.ChoiceCancel {
		if err := uc.sessions.Clear(ctx, sess.OperatorID); err != nil {
			return nil, err
		}
		return uc.say(uc.tr.T("edit.discarded")), nil
	}

	_, err := uc.publisher.EditPost(ctx, sess.Draft.TargetPostID, sess.Draft.EditCandidateText)
	if err != nil && !errors.Is(err, domain.ErrDelivery) {
		return nil, err
	}
	if clearErr := uc.sessions.Clear(ctx, sess.OperatorID); clearErr != nil {
		return nil, clearErr
	}
	if err != nil {
		logging.With(logging.WithPostID(ctx, sess.Draft.TargetPostID), uc.log).Warn().Err(err).Msg("channel edit failed")
		return uc.say(uc.tr.T("edit.delivery_failed", err.Error())), nil
	}
	return uc.say(uc.tr.T("edit.saved")), nil
}

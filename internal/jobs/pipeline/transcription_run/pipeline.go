package transcription_run

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	jobrt "github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	id, ok := jc.EntityID()
	if !ok {
		return jobrt.Validation("load", fmt.Errorf("message has no transcription id"))
	}
	return p.RunTranscription(jc.Ctx, id)
}

// RunTranscription drives one transcription from uploaded to done or
// transcription_failed. Re-running it on a job that is past this stage is a no-op.
func (p *Pipeline) RunTranscription(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := p.tracer.Start(ctx, "RunTranscription")
	span.SetAttributes(attribute.String("transcription.id", id.String()))
	defer func() {
		if err != nil && !errors.Is(err, jobrt.ErrCanceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dbc := dbctx.Context{Ctx: ctx}
	log := p.log.With("transcription_id", id)

	t, err := p.transcriptions.GetByID(dbc, id)
	if err != nil {
		return jobrt.Storage("load", err)
	}
	if t == nil {
		log.Warn("Transcription not found; dropping message")
		return nil
	}
	switch t.Status {
	case contracts.TranscriptionUploaded, contracts.TranscriptionTranscribing:
	default:
		log.Debug("Transcription not runnable; nothing to do", "status", t.Status)
		return nil
	}

	ok, err := p.transition(dbc, t, contracts.TranscriptionTranscribing, nil)
	if err != nil {
		return jobrt.Storage("start", err)
	}
	if !ok {
		log.Info("Transcription changed before start; stopping")
		return jobrt.ErrCanceled
	}
	if t.AudioRef == nil || *t.AudioRef == "" {
		return p.fail(dbc, t, jobrt.Validation("load", fmt.Errorf("transcription has no audio")))
	}

	gate := jobrt.NewGate(p.cancelProbe(id))
	if err := gate.Check(ctx, "transcribe"); err != nil {
		return err
	}
	text, err := p.transcribe(ctx, *t.AudioRef)
	if err != nil {
		return p.fail(dbc, t, jobrt.Collaborator("transcribe", err))
	}
	if err := gate.Check(ctx, "transcribe"); err != nil {
		log.Info("Transcription cancelled during speech-to-text; discarding result")
		return err
	}

	script := p.norm.Normalize(text)
	if strings.TrimSpace(script) == "" {
		return p.fail(dbc, t, jobrt.Validation("normalize", fmt.Errorf("transcript is empty")))
	}
	// Every attempt writes its own key; an overlapping delivery must never
	// overwrite or delete the script a done row points at.
	scriptKey := "scripts/" + id.String() + "/" + uuid.NewString() + ".txt"
	scriptRef, _, err := p.blobs.Put(ctx, scriptKey, strings.NewReader(script), "text/plain; charset=utf-8")
	if err != nil {
		return p.fail(dbc, t, jobrt.Collaborator("store_script", err))
	}

	audioRef := *t.AudioRef
	ok, err = p.transition(dbc, t, contracts.TranscriptionDone, map[string]interface{}{
		"script_ref": scriptRef,
		"audio_ref":  nil,
	})
	if err != nil {
		// The write may have landed; the blob stays.
		log.Warn("Finishing transcription failed; keeping script", "script_ref", scriptRef, "error", err)
		return jobrt.Storage("finish", err)
	}
	if !ok {
		log.Info("Transcription changed before commit; discarding result")
		p.discardScript(ctx, id, scriptRef)
		return jobrt.ErrCanceled
	}
	p.deleteBlob(ctx, audioRef, id)
	log.Info("Transcription done", "script_bytes", len(script))
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, audioRef string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.stt.Transcribe(ctx, audioRef)
}

// fail records transcription_failed and hands the step error back. A row
// that moved on concurrently (cancelled) is left alone.
func (p *Pipeline) fail(dbc dbctx.Context, t *contracts.Transcription, stepErr *jobrt.StepError) error {
	p.log.Error("Transcription failed",
		"transcription_id", t.ID,
		"kind", stepErr.Kind.String(),
		"stage", stepErr.Stage,
		"error", stepErr.Err,
	)
	ok, err := p.transition(dbc, t, contracts.TranscriptionTranscriptionFailed, nil)
	if err != nil {
		return jobrt.Storage(stepErr.Stage, err)
	}
	if !ok {
		return jobrt.ErrCanceled
	}
	return stepErr
}

func (p *Pipeline) transition(dbc dbctx.Context, t *contracts.Transcription, to contracts.TranscriptionStatus, updates map[string]interface{}) (bool, error) {
	ok, err := p.transcriptions.TransitionStatus(dbc, t.ID, to, updates)
	if err != nil || !ok {
		return ok, err
	}
	t.Status = to
	if p.notify != nil {
		p.notify.TranscriptionStatus(dbc.Ctx, t.OwnerUserID, t.ID, to)
	}
	return true, nil
}

func (p *Pipeline) cancelProbe(id uuid.UUID) jobrt.CancelProbe {
	return func(ctx context.Context) (bool, error) {
		t, err := p.transcriptions.GetByID(dbctx.Context{Ctx: ctx}, id)
		if err != nil {
			return false, err
		}
		return t == nil || t.Status == contracts.TranscriptionCancelled, nil
	}
}

// discardScript removes this attempt's script unless the row ended up
// pointing at it.
func (p *Pipeline) discardScript(ctx context.Context, id uuid.UUID, scriptRef string) {
	cur, err := p.transcriptions.GetByID(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, id)
	if err != nil {
		p.log.Warn("Reloading transcription failed; keeping script", "transcription_id", id, "script_ref", scriptRef, "error", err)
		return
	}
	if cur != nil && cur.ScriptRef != nil && *cur.ScriptRef == scriptRef {
		return
	}
	p.deleteBlob(ctx, scriptRef, id)
}

func (p *Pipeline) deleteBlob(ctx context.Context, ref string, id uuid.UUID) {
	if err := p.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		p.log.Warn("Best-effort blob delete failed", "transcription_id", id, "ref", ref, "error", err)
	}
}

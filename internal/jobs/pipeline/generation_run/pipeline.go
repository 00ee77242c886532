package generation_run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/contracts/schema"
	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	jobrt "github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
)

var errLostCommit = errors.New("generation left generating before commit")

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	id, ok := jc.EntityID()
	if !ok {
		return jobrt.Validation("load", fmt.Errorf("message has no generation id"))
	}
	return p.RunGeneration(jc.Ctx, id)
}

// RunGeneration classifies the transcript, extracts the contract fields,
// annotates the blanks and commits the contract together with the done
// transition. Only a generation in generating is worked on.
func (p *Pipeline) RunGeneration(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := p.tracer.Start(ctx, "RunGeneration")
	span.SetAttributes(attribute.String("generation.id", id.String()))
	defer func() {
		if err != nil && !errors.Is(err, jobrt.ErrCanceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dbc := dbctx.Context{Ctx: ctx}
	log := p.log.With("generation_id", id)

	g, err := p.repos.Generations.GetByID(dbc, id)
	if err != nil {
		return jobrt.Storage("load", err)
	}
	if g == nil {
		log.Warn("Generation not found; dropping message")
		return nil
	}
	if g.Status != contracts.GenerationGenerating {
		log.Debug("Generation not runnable; nothing to do", "status", g.Status)
		return nil
	}

	t, err := p.repos.Transcriptions.GetByID(dbc, g.TranscriptionID)
	if err != nil {
		return jobrt.Storage("load", err)
	}
	if t == nil || t.ScriptRef == nil || *t.ScriptRef == "" {
		return p.fail(dbc, g, jobrt.Validation("load", fmt.Errorf("transcript is gone")))
	}
	raw, err := objstore.ReadAll(ctx, p.blobs, *t.ScriptRef)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			return p.fail(dbc, g, jobrt.Validation("load", fmt.Errorf("transcript is gone: %w", err)))
		}
		return p.fail(dbc, g, jobrt.Collaborator("load", err))
	}
	text := string(raw)
	span.SetAttributes(attribute.Int("transcript.bytes", len(raw)))

	gate := jobrt.NewGate(p.cancelProbe(id))

	// classify
	if err := gate.Check(ctx, "classify"); err != nil {
		return err
	}
	var label string
	err = p.call(ctx, func(cctx context.Context) (cerr error) {
		label, cerr = p.ai.ClassifyType(cctx, text)
		return cerr
	})
	if err != nil {
		return p.fail(dbc, g, jobrt.Collaborator("classify", err))
	}
	if err := gate.Check(ctx, "classify"); err != nil {
		return err
	}
	label = strings.TrimSpace(label)
	if !p.catalog.IsSupportedType(label) {
		return p.fail(dbc, g, jobrt.Validation("classify", fmt.Errorf("unsupported contract type %q", label)))
	}
	span.SetAttributes(attribute.String("contract.type", label))
	cs, _ := p.catalog.Get(label)

	// extract
	if err := gate.Check(ctx, "extract"); err != nil {
		return err
	}
	var fields map[string]any
	err = p.call(ctx, func(cctx context.Context) (cerr error) {
		fields, cerr = p.ai.ExtractFields(cctx, text, label)
		return cerr
	})
	if err != nil {
		return p.fail(dbc, g, jobrt.Collaborator("extract", err))
	}
	if err := gate.Check(ctx, "extract"); err != nil {
		return err
	}
	if !p.catalog.MatchesSchema(label, fields) {
		diff := []string{"not an object"}
		if fields != nil {
			diff = schema.Diff(cs.Fields, fields)
		}
		log.Warn("Extracted fields do not match schema", "contract_type", label, "diff", diff)
		return p.fail(dbc, g, jobrt.Validation("extract", fmt.Errorf("fields do not match %s schema: %s", label, strings.Join(diff, ", "))))
	}

	// annotate
	if err := gate.Check(ctx, "annotate"); err != nil {
		return err
	}
	var notes map[string]string
	err = p.call(ctx, func(cctx context.Context) (cerr error) {
		notes, cerr = p.ai.Annotate(cctx, label, fields)
		return cerr
	})
	if err != nil {
		return p.fail(dbc, g, jobrt.Collaborator("annotate", err))
	}
	if err := gate.Check(ctx, "annotate"); err != nil {
		return err
	}
	suggestions := p.keepSuggestions(log, label, notes)

	contents, err := json.Marshal(fields)
	if err != nil {
		return p.fail(dbc, g, jobrt.Validation("commit", err))
	}
	contract := &contracts.Contract{
		OwnerUserID:     g.OwnerUserID,
		GenerationID:    g.ID,
		ContractType:    label,
		Contents:        datatypes.JSON(contents),
		InitialContents: datatypes.JSON(append([]byte(nil), contents...)),
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		ok, err := p.repos.Generations.TransitionStatus(txc, g.ID, contracts.GenerationDone)
		if err != nil {
			return err
		}
		if !ok {
			return errLostCommit
		}
		return p.repos.Contracts.CreateWithSuggestions(txc, contract, suggestions)
	})
	if errors.Is(err, errLostCommit) {
		log.Info("Generation cancelled before commit; discarding result")
		return jobrt.ErrCanceled
	}
	if err != nil {
		return jobrt.Storage("commit", err)
	}
	g.Status = contracts.GenerationDone
	p.notifyStatus(ctx, g)

	// The transcript is consumed by the contract.
	scriptRef := *t.ScriptRef
	if err := p.repos.Transcriptions.UpdateFields(dbc, t.ID, map[string]interface{}{"script_ref": nil}); err != nil {
		log.Warn("Clearing script ref failed", "transcription_id", t.ID, "error", err)
	} else if err := p.blobs.Delete(context.WithoutCancel(ctx), scriptRef); err != nil {
		log.Warn("Best-effort transcript delete failed", "ref", scriptRef, "error", err)
	}

	log.Info("Generation done",
		"contract_id", contract.ID,
		"contract_type", label,
		"suggestions", len(suggestions),
	)
	return nil
}

func (p *Pipeline) call(ctx context.Context, fn func(context.Context) error) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return fn(ctx)
}

// keepSuggestions drops notes for paths outside the schema and notes with no text.
func (p *Pipeline) keepSuggestions(log *logger.Logger, label string, notes map[string]string) []*contracts.Suggestion {
	out := make([]*contracts.Suggestion, 0, len(notes))
	var dropped []string
	for path, text := range notes {
		path = strings.TrimSpace(path)
		text = strings.TrimSpace(text)
		if text == "" || !p.catalog.IsValidFieldPath(label, path) {
			dropped = append(dropped, path)
			continue
		}
		out = append(out, &contracts.Suggestion{FieldPath: path, SuggestionText: text})
	}
	if len(dropped) > 0 {
		log.Warn("Dropped suggestions", "contract_type", label, "paths", dropped)
	}
	return out
}

// fail records failed and hands the step error back. A generation that was
// cancelled meanwhile stays cancelled.
func (p *Pipeline) fail(dbc dbctx.Context, g *contracts.Generation, stepErr *jobrt.StepError) error {
	p.log.Error("Generation failed",
		"generation_id", g.ID,
		"kind", stepErr.Kind.String(),
		"stage", stepErr.Stage,
		"error", stepErr.Err,
	)
	ok, err := p.repos.Generations.TransitionStatus(dbc, g.ID, contracts.GenerationFailed)
	if err != nil {
		return jobrt.Storage(stepErr.Stage, err)
	}
	if !ok {
		return jobrt.ErrCanceled
	}
	g.Status = contracts.GenerationFailed
	p.notifyStatus(dbc.Ctx, g)
	return stepErr
}

func (p *Pipeline) notifyStatus(ctx context.Context, g *contracts.Generation) {
	if p.notify != nil {
		p.notify.GenerationStatus(ctx, g.OwnerUserID, g.ID, g.Status)
	}
}

func (p *Pipeline) cancelProbe(id uuid.UUID) jobrt.CancelProbe {
	return func(ctx context.Context) (bool, error) {
		g, err := p.repos.Generations.GetByID(dbctx.Context{Ctx: ctx}, id)
		if err != nil {
			return false, err
		}
		return g == nil || g.Status == contracts.GenerationCancelled, nil
	}
}

package contracts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/speech-to-contract/internal/data/repos/testutil"
	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
)

func TestTranscriptionRepoTransitions(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewTranscriptionRepo(db, testutil.Logger(t))

	owner := uuid.New()
	tr := &contracts.Transcription{OwnerUserID: owner, Status: contracts.TranscriptionUploading}
	if err := repo.Create(dbc, tr); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tr.ID == uuid.Nil {
		t.Fatalf("Create: id not assigned")
	}

	// uploading -> transcribing is not an edge.
	ok, err := repo.TransitionStatus(dbc, tr.ID, contracts.TranscriptionTranscribing, nil)
	if err != nil || ok {
		t.Fatalf("illegal transition applied: ok=%v err=%v", ok, err)
	}

	ref := "audio/x.mp3"
	ok, err = repo.TransitionStatus(dbc, tr.ID, contracts.TranscriptionUploaded, map[string]interface{}{"audio_ref": ref})
	if err != nil || !ok {
		t.Fatalf("uploading -> uploaded: ok=%v err=%v", ok, err)
	}
	got, err := repo.GetByID(dbc, tr.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != contracts.TranscriptionUploaded || got.AudioRef == nil || *got.AudioRef != ref {
		t.Fatalf("unexpected row: status=%s audio_ref=%v", got.Status, got.AudioRef)
	}

	if ok, _ := repo.TransitionStatus(dbc, tr.ID, contracts.TranscriptionCancelled, nil); !ok {
		t.Fatalf("uploaded -> cancelled should apply")
	}
	if ok, _ := repo.TransitionStatus(dbc, tr.ID, contracts.TranscriptionDone, nil); ok {
		t.Fatalf("cancelled is terminal")
	}

	if err := repo.UpdateFields(dbc, tr.ID, map[string]interface{}{"status": "done"}); err == nil {
		t.Fatalf("UpdateFields must refuse status writes")
	}

	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("GetByID missing: got=%v err=%v", missing, err)
	}
}

func TestTranscriptionRepoOneActivePerOwner(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewTranscriptionRepo(db, testutil.Logger(t))

	owner := uuid.New()
	first := &contracts.Transcription{OwnerUserID: owner, Status: contracts.TranscriptionUploading}
	if err := repo.Create(dbc, first); err != nil {
		t.Fatalf("Create first: %v", err)
	}
	active, err := repo.ExistsActiveForOwner(dbc, owner)
	if err != nil || !active {
		t.Fatalf("ExistsActiveForOwner: active=%v err=%v", active, err)
	}

	second := &contracts.Transcription{OwnerUserID: owner, Status: contracts.TranscriptionUploading}
	if err := repo.Create(dbc, second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second active insert: expected ErrDuplicate, got %v", err)
	}

	other := &contracts.Transcription{OwnerUserID: uuid.New(), Status: contracts.TranscriptionUploading}
	if err := repo.Create(dbc, other); err != nil {
		t.Fatalf("other owner: %v", err)
	}

	if ok, _ := repo.TransitionStatus(dbc, first.ID, contracts.TranscriptionUploadFailed, nil); !ok {
		t.Fatalf("uploading -> upload_failed should apply")
	}
	third := &contracts.Transcription{OwnerUserID: owner, Status: contracts.TranscriptionUploading}
	if err := repo.Create(dbc, third); err != nil {
		t.Fatalf("insert after terminal: %v", err)
	}
	latest, err := repo.GetLatestByOwner(dbc, owner)
	if err != nil || latest == nil || latest.ID != third.ID {
		t.Fatalf("GetLatestByOwner: got=%v err=%v", latest, err)
	}
}

func TestGenerationRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewGenerationRepo(db, testutil.Logger(t))

	owner := uuid.New()
	tr := testutil.SeedDoneTranscription(t, ctx, db, owner, "scripts/a.txt")

	g := &contracts.Generation{OwnerUserID: owner, TranscriptionID: tr.ID, Status: contracts.GenerationGenerating}
	if err := repo.Create(dbc, g); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := &contracts.Generation{OwnerUserID: uuid.New(), TranscriptionID: tr.ID, Status: contracts.GenerationGenerating}
	if err := repo.Create(dbc, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second generation for same transcription: expected ErrDuplicate, got %v", err)
	}

	byTr, err := repo.GetByTranscriptionID(dbc, tr.ID)
	if err != nil || byTr == nil || byTr.ID != g.ID {
		t.Fatalf("GetByTranscriptionID: got=%v err=%v", byTr, err)
	}

	if ok, _ := repo.TransitionStatus(dbc, g.ID, contracts.GenerationArchived); ok {
		t.Fatalf("generating -> archived must not apply")
	}
	if ok, _ := repo.TransitionStatus(dbc, g.ID, contracts.GenerationDone); !ok {
		t.Fatalf("generating -> done should apply")
	}
	if ok, _ := repo.TransitionStatus(dbc, g.ID, contracts.GenerationArchived); !ok {
		t.Fatalf("done -> archived should apply")
	}
	if ok, _ := repo.TransitionStatus(dbc, g.ID, contracts.GenerationArchived); ok {
		t.Fatalf("archive must apply once")
	}

	latest, err := repo.GetLatestByOwner(dbc, owner, contracts.GenerationArchived)
	if err != nil || latest != nil {
		t.Fatalf("latest non-archived: got=%v err=%v", latest, err)
	}
	latest, err = repo.GetLatestByOwner(dbc, owner)
	if err != nil || latest == nil || latest.Status != contracts.GenerationArchived {
		t.Fatalf("latest any: got=%v err=%v", latest, err)
	}
}

func TestContractRepoAtomicWrite(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewContractRepo(db, testutil.Logger(t))

	genID := uuid.New()
	c := &contracts.Contract{
		OwnerUserID:     uuid.New(),
		GenerationID:    genID,
		ContractType:    "증여",
		Contents:        datatypes.JSON(`{"a":""}`),
		InitialContents: datatypes.JSON(`{"a":""}`),
	}
	sugg := []*contracts.Suggestion{
		{FieldPath: "b.c", SuggestionText: "second"},
		{FieldPath: "a", SuggestionText: "first"},
	}
	if err := repo.CreateWithSuggestions(dbc, c, sugg); err != nil {
		t.Fatalf("CreateWithSuggestions: %v", err)
	}
	got, err := repo.GetByGenerationID(dbc, genID)
	if err != nil || got == nil {
		t.Fatalf("GetByGenerationID: got=%v err=%v", got, err)
	}
	if len(got.Suggestions) != 2 || got.Suggestions[0].FieldPath != "a" {
		t.Fatalf("suggestions: %+v", got.Suggestions)
	}

	// A second contract for the same generation rolls back with its suggestions.
	again := &contracts.Contract{
		OwnerUserID:     c.OwnerUserID,
		GenerationID:    genID,
		ContractType:    "증여",
		Contents:        datatypes.JSON(`{}`),
		InitialContents: datatypes.JSON(`{}`),
	}
	if err := repo.CreateWithSuggestions(dbc, again, []*contracts.Suggestion{{FieldPath: "x", SuggestionText: "y"}}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate contract: expected ErrDuplicate, got %v", err)
	}
	var count int64
	if err := db.Model(&contracts.Suggestion{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("suggestions after rollback: got=%d want=2", count)
	}
}

package generation_run

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/contracts/schema"
	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/data/repos/testutil"
	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/jobs/queue"
	jobrt "github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/platform/ctxutil"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
	"github.com/yungbote/speech-to-contract/internal/services"
)

const transcript = "화자1: 제 토지를 아들에게 증여하려고 합니다\n화자2: 증여자는 김철수 씨가 맞으시죠"

type fakeAI struct {
	mu       sync.Mutex
	calls    map[string]int
	classify func(ctx context.Context, text string) (string, error)
	extract  func(ctx context.Context, text, label string) (map[string]any, error)
	annotate func(ctx context.Context, label string, fields map[string]any) (map[string]string, error)
}

func (f *fakeAI) count(step string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[step]
}

func (f *fakeAI) hit(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[step]++
}

func (f *fakeAI) ClassifyType(ctx context.Context, text string) (string, error) {
	f.hit("classify")
	return f.classify(ctx, text)
}

func (f *fakeAI) ExtractFields(ctx context.Context, text, label string) (map[string]any, error) {
	f.hit("extract")
	return f.extract(ctx, text, label)
}

func (f *fakeAI) Annotate(ctx context.Context, label string, fields map[string]any) (map[string]string, error) {
	f.hit("annotate")
	return f.annotate(ctx, label, fields)
}

type fixture struct {
	db     *gorm.DB
	log    *logger.Logger
	rs     repos.Set
	blobs  *objstore.LocalStore
	notify services.StatusNotifier
	svc    services.GenerationService
	ai     *fakeAI
	p      *Pipeline
	ctx    context.Context
}

// giftFields is a valid 증여 tree with a single filled leaf.
func giftFields(t *testing.T) map[string]any {
	t.Helper()
	cs, ok := schema.Default().Get("증여")
	if !ok {
		t.Fatalf("증여 schema missing")
	}
	var tree map[string]any
	if err := json.Unmarshal(cs.Skeleton(), &tree); err != nil {
		t.Fatalf("skeleton: %v", err)
	}
	tree["contract_type"] = "증여"
	tree["donor"].(map[string]any)["name"] = "김철수"
	return tree
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	blobs, err := objstore.NewLocalStore(log, t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	notify := services.NewStatusNotifier(log, nil)
	q := queue.New(log, rs.JobRuns, nil, "")
	ai := &fakeAI{
		classify: func(context.Context, string) (string, error) { return "증여", nil },
		extract: func(context.Context, string, string) (map[string]any, error) {
			return giftFields(t), nil
		},
		annotate: func(context.Context, string, map[string]any) (map[string]string, error) {
			return map[string]string{
				"gifted_property.type": "증여 재산의 종류를 특정하세요.",
				"no.such.field":        "무시됩니다",
				"donee.name":           "   ",
			}, nil
		},
	}
	return &fixture{
		db:     db,
		log:    log,
		rs:     rs,
		blobs:  blobs,
		notify: notify,
		svc:    services.NewGenerationService(log, rs.Transcriptions, rs.Generations, rs.Contracts, q, notify),
		ai:     ai,
		p:      New(db, log, rs, blobs, ai, schema.Default(), notify, time.Second),
		ctx:    ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: uuid.New()}),
	}
}

func (f *fixture) dbc() dbctx.Context { return dbctx.Context{Ctx: f.ctx} }

func (f *fixture) owner() uuid.UUID { return ctxutil.GetRequestData(f.ctx).UserID }

// start seeds a finished transcription and opens a generation on it.
func (f *fixture) start(t *testing.T) (*contracts.Transcription, *contracts.Generation) {
	t.Helper()
	ref, _, err := f.blobs.Put(context.Background(), "scripts/"+uuid.NewString()+".txt", strings.NewReader(transcript), "text/plain")
	if err != nil {
		t.Fatalf("put script: %v", err)
	}
	tr := &contracts.Transcription{
		OwnerUserID: f.owner(),
		Status:      contracts.TranscriptionDone,
		ScriptRef:   &ref,
	}
	if err := f.rs.Transcriptions.Create(f.dbc(), tr); err != nil {
		t.Fatalf("seed transcription: %v", err)
	}
	g, err := f.svc.Create(f.dbc(), tr.ID)
	if err != nil {
		t.Fatalf("Create generation: %v", err)
	}
	return tr, g
}

func (f *fixture) status(t *testing.T, id uuid.UUID) contracts.GenerationStatus {
	t.Helper()
	g, err := f.rs.Generations.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil || g == nil {
		t.Fatalf("reload generation: %v", err)
	}
	return g.Status
}

func (f *fixture) contract(t *testing.T, generationID uuid.UUID) *contracts.Contract {
	t.Helper()
	c, err := f.rs.Contracts.GetByGenerationID(dbctx.Context{Ctx: context.Background()}, generationID)
	if err != nil {
		t.Fatalf("load contract: %v", err)
	}
	return c
}

func TestRunGenerationCommitsContract(t *testing.T) {
	f := newFixture(t)
	tr, g := f.start(t)

	if err := f.p.RunGeneration(context.Background(), g.ID); err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	if s := f.status(t, g.ID); s != contracts.GenerationDone {
		t.Fatalf("status = %s, want done", s)
	}
	c := f.contract(t, g.ID)
	if c == nil {
		t.Fatalf("no contract committed")
	}
	if c.ContractType != "증여" || c.OwnerUserID != f.owner() {
		t.Fatalf("contract = %+v", c)
	}
	var contents map[string]any
	if err := json.Unmarshal(c.Contents, &contents); err != nil {
		t.Fatalf("contents: %v", err)
	}
	if !schema.Default().MatchesSchema("증여", contents) {
		t.Fatalf("stored contents do not match schema: %s", c.Contents)
	}
	if string(c.Contents) != string(c.InitialContents) {
		t.Fatalf("initial contents differ from contents")
	}
	if len(c.Suggestions) != 1 || c.Suggestions[0].FieldPath != "gifted_property.type" {
		t.Fatalf("suggestions = %+v, want only gifted_property.type", c.Suggestions)
	}

	reloaded, err := f.rs.Transcriptions.GetByID(f.dbc(), tr.ID)
	if err != nil {
		t.Fatalf("reload transcription: %v", err)
	}
	if reloaded.ScriptRef != nil {
		t.Fatalf("script_ref kept after generation")
	}
	if _, err := f.blobs.Open(context.Background(), *tr.ScriptRef); !errors.Is(err, objstore.ErrNotFound) {
		t.Fatalf("transcript blob still present: %v", err)
	}
}

func TestGenerationStatusArchivesOnce(t *testing.T) {
	f := newFixture(t)
	_, g := f.start(t)
	if err := f.p.RunGeneration(context.Background(), g.ID); err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}

	view, err := f.svc.GetStatus(f.dbc(), uuid.Nil)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if view.Status != contracts.GenerationDone || view.ContractID == nil {
		t.Fatalf("view = %+v, want done with contract id", view)
	}
	if s := f.status(t, g.ID); s != contracts.GenerationArchived {
		t.Fatalf("status after read = %s, want archived", s)
	}
	if _, err := f.svc.GetStatus(f.dbc(), g.ID); !errors.Is(err, services.ErrNoGenerationInProgress) {
		t.Fatalf("second GetStatus err = %v, want ErrNoGenerationInProgress", err)
	}
}

func TestRunGenerationRejectsUnsupportedTypes(t *testing.T) {
	for _, label := range []string{"빌려주기", schema.OtherLabel} {
		t.Run(label, func(t *testing.T) {
			f := newFixture(t)
			f.ai.classify = func(context.Context, string) (string, error) { return label, nil }
			_, g := f.start(t)

			err := f.p.RunGeneration(context.Background(), g.ID)
			if kind, ok := jobrt.KindOf(err); !ok || kind != jobrt.KindValidation {
				t.Fatalf("err = %v, want validation step error", err)
			}
			if s := f.status(t, g.ID); s != contracts.GenerationFailed {
				t.Fatalf("status = %s, want failed", s)
			}
			if f.ai.count("extract") != 0 {
				t.Fatalf("extractor called for unsupported type")
			}
			if c := f.contract(t, g.ID); c != nil {
				t.Fatalf("contract committed for unsupported type")
			}
		})
	}
}

func TestRunGenerationRejectsSchemaMismatch(t *testing.T) {
	cases := map[string]func(map[string]any){
		"extra key":     func(m map[string]any) { m["surprise"] = "x" },
		"missing group": func(m map[string]any) { delete(m, "donee") },
		"object at leaf": func(m map[string]any) {
			m["contract_date"] = map[string]any{"year": "2024"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.ai.extract = func(context.Context, string, string) (map[string]any, error) {
				tree := giftFields(t)
				mutate(tree)
				return tree, nil
			}
			_, g := f.start(t)

			err := f.p.RunGeneration(context.Background(), g.ID)
			if kind, ok := jobrt.KindOf(err); !ok || kind != jobrt.KindValidation {
				t.Fatalf("err = %v, want validation step error", err)
			}
			if s := f.status(t, g.ID); s != contracts.GenerationFailed {
				t.Fatalf("status = %s, want failed", s)
			}
			if f.ai.count("annotate") != 0 {
				t.Fatalf("annotator called after schema mismatch")
			}
			if c := f.contract(t, g.ID); c != nil {
				t.Fatalf("contract committed after schema mismatch")
			}
		})
	}
}

func TestRunGenerationCancelledMidChain(t *testing.T) {
	f := newFixture(t)
	_, g := f.start(t)
	f.ai.extract = func(context.Context, string, string) (map[string]any, error) {
		if _, err := f.svc.Cancel(f.dbc(), g.ID); err != nil {
			t.Errorf("Cancel: %v", err)
		}
		return giftFields(t), nil
	}

	err := f.p.RunGeneration(context.Background(), g.ID)
	if !errors.Is(err, jobrt.ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if s := f.status(t, g.ID); s != contracts.GenerationCancelled {
		t.Fatalf("status = %s, want cancelled", s)
	}
	if f.ai.count("annotate") != 0 {
		t.Fatalf("annotator called after cancellation")
	}
	if c := f.contract(t, g.ID); c != nil {
		t.Fatalf("contract committed for cancelled generation")
	}
}

func TestRunGenerationCollaboratorFailureThenRetry(t *testing.T) {
	f := newFixture(t)
	_, g := f.start(t)
	f.ai.classify = func(context.Context, string) (string, error) { return "", errors.New("model overloaded") }

	err := f.p.RunGeneration(context.Background(), g.ID)
	if kind, ok := jobrt.KindOf(err); !ok || kind != jobrt.KindCollaborator {
		t.Fatalf("err = %v, want collaborator step error", err)
	}
	if jobrt.StageOf(err, "") != "classify" {
		t.Fatalf("stage = %q, want classify", jobrt.StageOf(err, ""))
	}
	if s := f.status(t, g.ID); s != contracts.GenerationFailed {
		t.Fatalf("status = %s, want failed", s)
	}

	if _, err := f.svc.Retry(f.dbc(), g.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	f.ai.classify = func(context.Context, string) (string, error) { return "증여", nil }
	if err := f.p.RunGeneration(context.Background(), g.ID); err != nil {
		t.Fatalf("RunGeneration after retry: %v", err)
	}
	if s := f.status(t, g.ID); s != contracts.GenerationDone {
		t.Fatalf("status = %s, want done", s)
	}
}

func TestRunGenerationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, g := f.start(t)
	for i := 0; i < 3; i++ {
		if err := f.p.RunGeneration(context.Background(), g.ID); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if n := f.ai.count("classify"); n != 1 {
		t.Fatalf("classifier called %d times, want 1", n)
	}
	if c := f.contract(t, g.ID); c == nil {
		t.Fatalf("no contract committed")
	}
}

func TestCreateRejectsConsumedTranscription(t *testing.T) {
	f := newFixture(t)
	tr, g := f.start(t)
	if err := f.p.RunGeneration(context.Background(), g.ID); err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	if _, err := f.svc.Create(f.dbc(), tr.ID); !errors.Is(err, services.ErrTranscriptionConsumed) {
		t.Fatalf("Create err = %v, want ErrTranscriptionConsumed", err)
	}
}

// lateCancelRepo lets the cancellation check after annotate see generating,
// then cancels the generation before the commit runs.
type lateCancelRepo struct {
	repos.GenerationRepo
	ready  func() bool
	cancel func()
	once   sync.Once
}

func (r *lateCancelRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*contracts.Generation, error) {
	g, err := r.GenerationRepo.GetByID(dbc, id)
	if err == nil && r.ready() {
		r.once.Do(r.cancel)
	}
	return g, err
}

func TestRunGenerationCancelledAtCommit(t *testing.T) {
	f := newFixture(t)
	tr, g := f.start(t)
	rs := f.rs
	rs.Generations = &lateCancelRepo{
		GenerationRepo: f.rs.Generations,
		ready:          func() bool { return f.ai.count("annotate") > 0 },
		cancel: func() {
			if _, err := f.svc.Cancel(f.dbc(), g.ID); err != nil {
				t.Errorf("Cancel: %v", err)
			}
		},
	}
	p := New(f.db, f.log, rs, f.blobs, f.ai, schema.Default(), f.notify, time.Second)

	err := p.RunGeneration(context.Background(), g.ID)
	if !errors.Is(err, jobrt.ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if s := f.status(t, g.ID); s != contracts.GenerationCancelled {
		t.Fatalf("status = %s, want cancelled", s)
	}
	if c := f.contract(t, g.ID); c != nil {
		t.Fatalf("contract committed for cancelled generation")
	}
	var contractRows, suggestionRows int64
	if err := f.db.Model(&contracts.Contract{}).Count(&contractRows).Error; err != nil {
		t.Fatalf("count contracts: %v", err)
	}
	if err := f.db.Model(&contracts.Suggestion{}).Count(&suggestionRows).Error; err != nil {
		t.Fatalf("count suggestions: %v", err)
	}
	if contractRows != 0 || suggestionRows != 0 {
		t.Fatalf("rows after rollback: contracts=%d suggestions=%d, want 0", contractRows, suggestionRows)
	}

	reloaded, err := f.rs.Transcriptions.GetByID(f.dbc(), tr.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload transcription: %v", err)
	}
	if reloaded.ScriptRef == nil {
		t.Fatalf("script_ref cleared for cancelled generation")
	}
}

package services

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/jobs/queue"
	"github.com/yungbote/speech-to-contract/internal/platform/ctxutil"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
)

type UploadConfig struct {
	AllowedExtensions []string
	MaxBytes          int64
	ChunkBytes        int
}

func (c UploadConfig) withDefaults() UploadConfig {
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{".mp3", ".wav"}
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 40 << 20
	}
	if c.ChunkBytes <= 0 {
		c.ChunkBytes = 1 << 20
	}
	return c
}

type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// TranscriptionService is the lifecycle API of Transcription jobs. Every
// call acts for the user in the request context; a nil id addresses the
// user's latest transcription.
type TranscriptionService interface {
	Upload(dbc dbctx.Context, in UploadInput) (*contracts.Transcription, error)
	GetStatus(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error)
	Cancel(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error)
	Retry(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error)
}

type transcriptionService struct {
	log    *logger.Logger
	repo   repos.TranscriptionRepo
	blobs  objstore.Store
	queue  queue.Enqueuer
	notify StatusNotifier
	cfg    UploadConfig
}

func NewTranscriptionService(
	baseLog *logger.Logger,
	repo repos.TranscriptionRepo,
	blobs objstore.Store,
	q queue.Enqueuer,
	notify StatusNotifier,
	cfg UploadConfig,
) TranscriptionService {
	return &transcriptionService{
		log:    baseLog.With("service", "TranscriptionService"),
		repo:   repo,
		blobs:  blobs,
		queue:  q,
		notify: notify,
		cfg:    cfg.withDefaults(),
	}
}

func requestUser(dbc dbctx.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, ErrUnauthorized
	}
	return rd.UserID, nil
}

func (s *transcriptionService) allowed(ext string) bool {
	for _, a := range s.cfg.AllowedExtensions {
		if strings.EqualFold(strings.TrimSpace(a), ext) {
			return true
		}
	}
	return false
}

func (s *transcriptionService) Upload(dbc dbctx.Context, in UploadInput) (*contracts.Transcription, error) {
	owner, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(strings.TrimSpace(in.Filename))
	if in.Body == nil || name == "" || name == "." || name == "/" {
		return nil, ErrMissingFile
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !s.allowed(ext) {
		return nil, ErrUnsupportedAudioFormat
	}
	body := bufio.NewReaderSize(in.Body, s.cfg.ChunkBytes)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingFile
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}

	active, err := s.repo.ExistsActiveForOwner(dbc, owner)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveTranscriptionExists
	}

	t := &contracts.Transcription{
		ID:               uuid.New(),
		OwnerUserID:      owner,
		Status:           contracts.TranscriptionUploading,
		OriginalFilename: name,
	}
	if err := s.repo.Create(dbc, t); err != nil {
		if errors.Is(err, repos.ErrDuplicate) {
			return nil, ErrActiveTranscriptionExists
		}
		return nil, err
	}
	s.notify.TranscriptionStatus(dbc.Ctx, owner, t.ID, t.Status)

	guard := &sizeGuard{r: body, max: s.cfg.MaxBytes, chunk: s.cfg.ChunkBytes}
	ref, written, putErr := s.blobs.Put(dbc.Ctx, "audio/"+t.ID.String()+ext, guard, in.ContentType)
	if putErr != nil {
		if ref != "" {
			s.deleteBlob(dbc, ref, t.ID)
		}
		if _, err := s.transition(dbc, t, contracts.TranscriptionUploadFailed, nil); err != nil {
			s.log.Error("Recording upload failure failed", "transcription_id", t.ID, "error", err)
		}
		if guard.exceeded || errors.Is(putErr, errTooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("store audio: %w", putErr)
	}

	ok, err := s.transition(dbc, t, contracts.TranscriptionUploaded, map[string]interface{}{
		"audio_ref":  ref,
		"size_bytes": written,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Cancelled while the bytes were streaming.
		s.deleteBlob(dbc, ref, t.ID)
		return s.repo.GetByID(dbc, t.ID)
	}
	t.AudioRef = &ref
	t.SizeBytes = written

	if _, err := s.queue.EnqueueTranscription(dbc, owner, t.ID); err != nil {
		return nil, fmt.Errorf("enqueue transcription: %w", err)
	}
	s.log.Info("Audio uploaded", "transcription_id", t.ID, "size_bytes", written)
	return t, nil
}

func (s *transcriptionService) load(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error) {
	owner, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	var t *contracts.Transcription
	if id == uuid.Nil {
		t, err = s.repo.GetLatestByOwner(dbc, owner)
	} else {
		t, err = s.repo.GetByID(dbc, id)
	}
	if err != nil {
		return nil, err
	}
	if t == nil || t.OwnerUserID != owner {
		return nil, ErrNoAudioData
	}
	return t, nil
}

func (s *transcriptionService) GetStatus(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error) {
	return s.load(dbc, id)
}

func (s *transcriptionService) Cancel(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error) {
	t, err := s.load(dbc, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(contracts.TranscriptionCancelled) {
		return nil, ErrInvalidStatusForCancel
	}
	ok, err := s.transition(dbc, t, contracts.TranscriptionCancelled, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidStatusForCancel
	}
	var g errgroup.Group
	for _, ref := range []*string{t.AudioRef, t.ScriptRef} {
		if ref == nil || *ref == "" {
			continue
		}
		r := *ref
		g.Go(func() error {
			s.deleteBlob(dbc, r, t.ID)
			return nil
		})
	}
	_ = g.Wait()
	return t, nil
}

func (s *transcriptionService) Retry(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error) {
	t, err := s.load(dbc, id)
	if err != nil {
		return nil, err
	}
	if t.Status != contracts.TranscriptionTranscriptionFailed {
		return nil, ErrNotRetryable
	}
	ok, err := s.transition(dbc, t, contracts.TranscriptionUploaded, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRetryable
	}
	if _, err := s.queue.EnqueueTranscription(dbc, t.OwnerUserID, t.ID); err != nil {
		return nil, fmt.Errorf("enqueue transcription: %w", err)
	}
	return t, nil
}

// transition applies a guarded status write and mirrors it on t.
func (s *transcriptionService) transition(dbc dbctx.Context, t *contracts.Transcription, to contracts.TranscriptionStatus, updates map[string]interface{}) (bool, error) {
	ok, err := s.repo.TransitionStatus(dbc, t.ID, to, updates)
	if err != nil || !ok {
		return ok, err
	}
	t.Status = to
	s.notify.TranscriptionStatus(dbc.Ctx, t.OwnerUserID, t.ID, to)
	return true, nil
}

func (s *transcriptionService) deleteBlob(dbc dbctx.Context, ref string, id uuid.UUID) {
	if err := s.blobs.Delete(dbc.Ctx, ref); err != nil {
		s.log.Warn("Best-effort blob delete failed", "transcription_id", id, "ref", ref, "error", err)
	}
}

var errTooLarge = errors.New("upload exceeds size limit")

// sizeGuard hands out at most chunk bytes per read and fails once more
// than max bytes have passed through.
type sizeGuard struct {
	r        io.Reader
	max      int64
	chunk    int
	n        int64
	exceeded bool
}

func (g *sizeGuard) Read(p []byte) (int, error) {
	if g.exceeded {
		return 0, errTooLarge
	}
	if len(p) > g.chunk {
		p = p[:g.chunk]
	}
	n, err := g.r.Read(p)
	g.n += int64(n)
	if g.n > g.max {
		g.exceeded = true
		return n, errTooLarge
	}
	return n, err
}

package gcp

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
)

type SpeechConfig struct {
	LanguageCode string
	Model        string
	SpeakerCount int
	// MinTurn and MaxGap control how short same-speaker turns are merged.
	MinTurn time.Duration
	MaxGap  time.Duration
}

func (c SpeechConfig) withDefaults() SpeechConfig {
	if c.LanguageCode == "" {
		c.LanguageCode = "ko-KR"
	}
	if c.SpeakerCount <= 0 {
		c.SpeakerCount = 2
	}
	if c.MinTurn <= 0 {
		c.MinTurn = time.Second
	}
	if c.MaxGap <= 0 {
		c.MaxGap = 500 * time.Millisecond
	}
	return c
}

// SpeechTranscriber turns a stored audio blob into a diarized transcript
// with one "화자N: text" line per speaker turn.
type SpeechTranscriber struct {
	log        *logger.Logger
	client     *speech.Client
	blobs      objstore.Store
	cfg        SpeechConfig
	maxRetries int
}

func NewSpeechTranscriber(ctx context.Context, log *logger.Logger, blobs objstore.Store, cfg SpeechConfig) (*SpeechTranscriber, error) {
	c, err := speech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &SpeechTranscriber{
		log:        log.With("service", "SpeechTranscriber"),
		client:     c,
		blobs:      blobs,
		cfg:        cfg.withDefaults(),
		maxRetries: 4,
	}, nil
}

func (s *SpeechTranscriber) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *SpeechTranscriber) Transcribe(ctx context.Context, audioRef string) (string, error) {
	audio, err := s.recognitionAudio(ctx, audioRef)
	if err != nil {
		return "", err
	}
	req := &speechpb.LongRunningRecognizeRequest{
		Config: s.recognitionConfig(audioRef),
		Audio:  audio,
	}
	resp, err := s.retry(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := s.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	turns := mergeShortTurns(groupTurns(diarizedWords(resp)), s.cfg.MinTurn, s.cfg.MaxGap)
	if len(turns) == 0 {
		return plainTranscript(resp), nil
	}
	return renderTurns(turns), nil
}

// gs:// refs are read by the API directly; other stores are inlined.
func (s *SpeechTranscriber) recognitionAudio(ctx context.Context, ref string) (*speechpb.RecognitionAudio, error) {
	if strings.HasPrefix(ref, SchemeGCS+"://") {
		return &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: ref}}, nil
	}
	data, err := objstore.ReadAll(ctx, s.blobs, ref)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: data}}, nil
}

func (s *SpeechTranscriber) recognitionConfig(ref string) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		LanguageCode:               s.cfg.LanguageCode,
		Model:                      s.cfg.Model,
		Encoding:                   encodingFor(ref),
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          int32(s.cfg.SpeakerCount),
			MaxSpeakerCount:          int32(s.cfg.SpeakerCount),
		},
	}
}

func encodingFor(ref string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(path.Ext(ref)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func (s *SpeechTranscriber) retry(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err
		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted {
			return nil, err
		}
		if attempt == s.maxRetries {
			break
		}
		s.log.Warn("Speech call failed; retrying", "attempt", attempt+1, "code", code.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

type word struct {
	text    string
	start   time.Duration
	end     time.Duration
	speaker int32
}

type turn struct {
	speaker int32
	start   time.Duration
	end     time.Duration
	text    string
}

// With diarization enabled the last result carries every word with its
// speaker tag; earlier results repeat the words without tags.
func diarizedWords(resp *speechpb.LongRunningRecognizeResponse) []word {
	if resp == nil {
		return nil
	}
	for i := len(resp.Results) - 1; i >= 0; i-- {
		r := resp.Results[i]
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		var out []word
		for _, w := range r.Alternatives[0].Words {
			if w == nil || w.SpeakerTag == 0 {
				continue
			}
			out = append(out, word{
				text:    w.Word,
				start:   toDuration(w.StartTime),
				end:     toDuration(w.EndTime),
				speaker: w.SpeakerTag,
			})
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func toDuration(d *durationpb.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return d.AsDuration()
}

func groupTurns(words []word) []turn {
	var out []turn
	for _, w := range words {
		if n := len(out); n > 0 && out[n-1].speaker == w.speaker {
			out[n-1].text += " " + w.text
			if w.end > out[n-1].end {
				out[n-1].end = w.end
			}
			continue
		}
		out = append(out, turn{speaker: w.speaker, start: w.start, end: w.end, text: w.text})
	}
	return out
}

// mergeShortTurns folds a turn into the previous one when both belong to the
// same speaker, the gap is at most maxGap and the previous turn is shorter than minTurn.
func mergeShortTurns(turns []turn, minTurn, maxGap time.Duration) []turn {
	if len(turns) == 0 {
		return nil
	}
	out := []turn{turns[0]}
	for _, next := range turns[1:] {
		cur := &out[len(out)-1]
		gap := next.start - cur.end
		if cur.speaker == next.speaker && gap <= maxGap && cur.end-cur.start < minTurn {
			cur.end = next.end
			cur.text = strings.TrimSpace(cur.text + " " + next.text)
			continue
		}
		out = append(out, next)
	}
	return out
}

// Speakers are renumbered in order of first appearance.
func renderTurns(turns []turn) string {
	labels := map[int32]int{}
	var b strings.Builder
	for _, t := range turns {
		text := strings.TrimSpace(t.text)
		if text == "" {
			continue
		}
		n, ok := labels[t.speaker]
		if !ok {
			n = len(labels) + 1
			labels[t.speaker] = n
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "화자%d: %s", n, text)
	}
	return b.String()
}

func plainTranscript(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

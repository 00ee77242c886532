package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	types "github.com/yungbote/speech-to-contract/internal/domain"
	"github.com/yungbote/speech-to-contract/internal/platform/ctxutil"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

/*
Context is the execution handle for one delivery of a job_run message.
Pipelines read their input from it; the dispatcher uses it to record how the
delivery ended. Pipelines never write job_run themselves.
*/
type Context struct {
	Ctx  context.Context
	Job  *types.JobRun
	Repo repos.JobRunRepo
	Log  *logger.Logger

	payload map[string]any
}

func NewContext(ctx context.Context, job *types.JobRun, repo repos.JobRunRepo, log *logger.Logger) *Context {
	c := &Context{
		Ctx:  ctxutil.Default(ctx),
		Job:  job,
		Repo: repo,
		Log:  log,
	}
	if err := c.decodePayload(); err != nil && log != nil {
		log.Warn("Malformed job payload; ignoring", "job_id", job.ID, "error", err)
	}
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		return err
	}
	if m != nil {
		c.payload = m
	}
	return nil
}

func (c *Context) applyTraceData() {
	payload := c.Payload()
	traceID := payloadString(payload, "trace_id")
	reqID := payloadString(payload, "request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   traceID,
		RequestID: reqID,
	})
}

func payloadString(p map[string]any, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := payloadString(c.Payload(), key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EntityID is the job row this message points at.
func (c *Context) EntityID() (uuid.UUID, bool) {
	if c.Job != nil && c.Job.EntityID != nil && *c.Job.EntityID != uuid.Nil {
		return *c.Job.EntityID, true
	}
	return c.PayloadUUID("entity_id")
}

func (c *Context) dbc() dbctx.Context { return dbctx.Context{Ctx: c.Ctx} }

func (c *Context) jobID() uuid.UUID {
	if c.Job == nil {
		return uuid.Nil
	}
	return c.Job.ID
}

func (c *Context) Succeed(stage string) error {
	if c.Repo == nil {
		return nil
	}
	return c.Repo.MarkSucceeded(c.dbc(), c.jobID(), stage)
}

func (c *Context) Handled(stage string, cause error) error {
	if c.Repo == nil {
		return nil
	}
	return c.Repo.MarkHandled(c.dbc(), c.jobID(), stage, cause)
}

func (c *Context) Fail(stage string, cause error) error {
	if c.Repo == nil {
		return nil
	}
	return c.Repo.MarkFailed(c.dbc(), c.jobID(), stage, cause)
}

// Heartbeat keeps a long delivery from being reclaimed as stale.
func (c *Context) Heartbeat() error {
	if c.Repo == nil {
		return nil
	}
	return c.Repo.Heartbeat(c.dbc(), c.jobID())
}

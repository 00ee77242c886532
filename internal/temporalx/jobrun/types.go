package jobrun

import "github.com/yungbote/speech-to-contract/internal/jobs/queue"

const (
	WorkflowName    = queue.WorkflowName
	ActivityDeliver = "job_run_deliver"
)

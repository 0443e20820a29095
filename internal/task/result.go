package task

// ResultStatus is the outcome reported in a Result.
type ResultStatus string

const (
	ResultSuccess    ResultStatus = "success"
	ResultError      ResultStatus = "error"
	ResultProcessing ResultStatus = "processing"
)

// Result is the per-file outcome produced by the file tasks. Task failures
// are reported here instead of as errors, so the queue records the job as
// SUCCESS and never retries it.
type Result struct {
	Status   ResultStatus `json:"status"`
	FileHash string       `json:"file_hash"`
	TaskID   string       `json:"task_id,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func errorResult(fileHash, msg string) Result {
	return Result{Status: ResultError, FileHash: fileHash, Error: msg}
}

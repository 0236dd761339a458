// Package stage defines the contract between the pipeline orchestrator and
// the processing stages it drives.
//
// A Collaborator performs the actual work of one stage: transcription,
// diarization, summarization, or any other transform over the job's media.
// The orchestrator never inspects what a collaborator does; it only supplies
// the resolved parameters and routes the result into the cache and the
// manifest. Collaborators signal recoverable failures by returning an
// ExecutionError with Retryable set, which the orchestrator retries within
// the configured limit before classifying the stage as failed.
//
// Declarations describe the shape of a job's pipeline: which stages run,
// what they depend on, and whether a stage is optional. Plan validates the
// declarations and returns them in dependency order so the orchestrator can
// execute sequentially with every input satisfied.
package stage

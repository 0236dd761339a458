package stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// retryableExitCode follows the sysexits convention: a collaborator process
// exiting with EX_TEMPFAIL asks to be retried.
const retryableExitCode = 75

// ExecCollaborator runs an external program as a stage. The request is passed
// through the environment: TREADLE_JOB_ID, TREADLE_STAGE_ID, TREADLE_MEDIA_REF,
// one TREADLE_PARAM_<NAME> per resolved parameter, and one TREADLE_INPUT_<STAGE>
// per dependency artifact. The last non-empty line of stdout is taken as the
// produced artifact reference.
type ExecCollaborator struct {
	Binary string
	Args   []string
}

// NewExecCollaborator wraps the given program invocation as a collaborator.
func NewExecCollaborator(binary string, args ...string) *ExecCollaborator {
	return &ExecCollaborator{Binary: binary, Args: args}
}

func (c *ExecCollaborator) Execute(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(c.Binary) == "" {
		return Result{}, NewExecutionError(req.Config.StageID, false, errors.New("no command configured"))
	}

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...) //nolint:gosec
	cmd.Env = append(os.Environ(), c.environment(req)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		wrapped := fmt.Errorf("%s: %w: %s", c.Binary, err, detail)
		var exitErr *exec.ExitError
		retryable := errors.As(err, &exitErr) && exitErr.ExitCode() == retryableExitCode
		return Result{}, NewExecutionError(req.Config.StageID, retryable, wrapped)
	}

	artifact := lastNonEmptyLine(stdout.String())
	if artifact == "" {
		return Result{}, NewExecutionError(req.Config.StageID, false,
			fmt.Errorf("%s produced no artifact reference on stdout", c.Binary))
	}
	return Result{ArtifactRef: artifact}, nil
}

func (c *ExecCollaborator) environment(req Request) []string {
	env := []string{
		"TREADLE_JOB_ID=" + req.JobID,
		"TREADLE_STAGE_ID=" + req.Config.StageID,
		"TREADLE_MEDIA_REF=" + req.MediaRef,
	}
	for name, value := range req.Config.Params {
		env = append(env, "TREADLE_PARAM_"+envKey(name)+"="+value)
	}
	for dep, ref := range req.Inputs {
		env = append(env, "TREADLE_INPUT_"+envKey(dep)+"="+ref)
	}
	return env
}

// HealthCheck reports whether the configured binary is resolvable.
func (c *ExecCollaborator) HealthCheck(context.Context) Health {
	name := strings.TrimSpace(c.Binary)
	if name == "" {
		return Unhealthy("exec", "no command configured")
	}
	if _, err := exec.LookPath(name); err != nil {
		return Unhealthy(name, err.Error())
	}
	return Healthy(name)
}

func envKey(name string) string {
	upper := strings.ToUpper(name)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, upper)
}

func lastNonEmptyLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

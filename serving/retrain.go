package serving

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	TargetClassification = "classification"
	TargetGeneric        = "generic"

	RetrainCompletedMessage = "retrain completed"
)

// TrainerCommand is one external training procedure: argv plus working directory.
type TrainerCommand struct {
	Command []string
	Dir     string
}

type RetrainConfig struct {
	Classification TrainerCommand
	Generic        TrainerCommand
	// ReloadAfterRetrain reloads the registry from its artifact path after a
	// successful run.
	ReloadAfterRetrain bool
}

// RunResult is what a finished trainer process left behind.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner runs a process to completion. A non-zero exit is reported in
// RunResult, not as an error; errors mean the process could not run at all.
type CommandRunner interface {
	Run(ctx context.Context, cmd TrainerCommand) (RunResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd TrainerCommand) (RunResult, error) {
	if len(cmd.Command) == 0 {
		return RunResult{}, errors.New("trainer command is empty")
	}
	c := exec.CommandContext(ctx, cmd.Command[0], cmd.Command[1:]...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	result := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// Reloader is the write side of ml.Registry used after a retrain.
type Reloader interface {
	Reload() error
}

type RetrainOutcome struct {
	Succeeded   bool   `json:"succeeded"`
	Message     string `json:"message"`
	ErrorOutput string `json:"error_output,omitempty"`
	Target      string `json:"target"`
	Reloaded    bool   `json:"reloaded"`
	ReloadError string `json:"reload_error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

type Retrainer struct {
	cfg    RetrainConfig
	runner CommandRunner
	models Reloader
	events EventPublisher
	logger *zap.Logger

	// one trainer at a time; both write the same artifact
	mu sync.Mutex
}

func NewRetrainer(cfg RetrainConfig, runner CommandRunner, models Reloader, events EventPublisher, logger *zap.Logger) *Retrainer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrainer{
		cfg:    cfg,
		runner: runner,
		models: models,
		events: events,
		logger: logger,
	}
}

// ResolveTarget maps a requested target to a trainer. Unknown targets fall
// back to the generic trainer; fallback reports whether that happened.
func (r *Retrainer) ResolveTarget(target string) (name string, cmd TrainerCommand, fallback bool) {
	switch strings.TrimSpace(target) {
	case "", TargetClassification:
		return TargetClassification, r.cfg.Classification, false
	case TargetGeneric:
		return TargetGeneric, r.cfg.Generic, false
	default:
		return TargetGeneric, r.cfg.Generic, true
	}
}

// Retrain runs the trainer for target and blocks until it exits. There is no
// internal timeout; cancelling ctx kills the trainer.
func (r *Retrainer) Retrain(ctx context.Context, target string) (*RetrainOutcome, error) {
	name, cmd, fallback := r.ResolveTarget(target)
	if fallback {
		r.logger.Warn("unknown retrain target, using generic trainer", zap.String("target", target))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	logger := r.logger.With(zap.String("target", name), zap.Strings("command", cmd.Command))
	logger.Info("retrain started")
	start := time.Now()

	result, err := r.runner.Run(ctx, cmd)
	outcome := &RetrainOutcome{
		Target:     name,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		outcome.Message = "training failed"
		outcome.ErrorOutput = result.Stderr
		logger.Error("trainer could not run", zap.Error(err))
		r.publish(outcome)
		return outcome, &Error{Kind: KindTrainingFailed, Message: "training failed", Detail: result.Stderr, Err: err}
	}
	if result.ExitCode != 0 {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		outcome.Message = "training failed"
		outcome.ErrorOutput = detail
		logger.Error("trainer exited with error", zap.Int("exit_code", result.ExitCode), zap.String("stderr", detail))
		r.publish(outcome)
		return outcome, &Error{Kind: KindTrainingFailed, Message: "training failed", Detail: detail}
	}

	outcome.Succeeded = true
	outcome.Message = RetrainCompletedMessage
	if r.cfg.ReloadAfterRetrain && r.models != nil {
		if err := r.models.Reload(); err != nil {
			loadErr := &Error{Kind: KindModelLoad, Message: "model reload failed", Err: err}
			outcome.ReloadError = loadErr.Error()
			logger.Warn("retrain completed but model reload failed", zap.String("kind", string(KindModelLoad)), zap.Error(err))
		} else {
			outcome.Reloaded = true
		}
	}
	logger.Info("retrain completed", zap.Int64("duration_ms", outcome.DurationMS), zap.Bool("reloaded", outcome.Reloaded))
	r.publish(outcome)
	return outcome, nil
}

func (r *Retrainer) publish(outcome *RetrainOutcome) {
	if r.events != nil {
		r.events.Publish("retrain", outcome)
	}
}

package executor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"faultctl/internal/pipeline"
)

// Kubectl applies the rendered manifest through the kubectl binary and
// streams process output as events. Selected via config; never the default.
type Kubectl struct {
	Binary    string // defaults to "kubectl"
	Context   string // optional --context
	Namespace string // optional --namespace fallback for the apply
}

// Run applies the manifest and forwards stdout/stderr lines until the
// process exits. A non-zero exit surfaces as a single stream failure.
func (k *Kubectl) Run(ctx context.Context, req pipeline.Request) <-chan pipeline.StreamEvent {
	out := make(chan pipeline.StreamEvent)
	go func() {
		defer close(out)
		if err := k.apply(ctx, req, out); err != nil {
			emit(ctx, out, pipeline.StreamEvent{Err: err})
			return
		}
		emit(ctx, out, pipeline.StreamEvent{Text: "manifest applied", Kind: pipeline.KindSuccess})
	}()
	return out
}

func (k *Kubectl) apply(ctx context.Context, req pipeline.Request, out chan<- pipeline.StreamEvent) error {
	binary := k.Binary
	if binary == "" {
		binary = "kubectl"
	}
	args := []string{"apply", "-f", "-"}
	if k.Context != "" {
		args = append(args, "--context", k.Context)
	}
	if k.Namespace != "" {
		args = append(args, "--namespace", k.Namespace)
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = strings.NewReader(req.Manifest)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("executor: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("executor: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("executor: start %s: %w", binary, err)
	}
	emit(ctx, out, pipeline.StreamEvent{
		Text: fmt.Sprintf("applying %s via %s", req.DocumentKind, binary),
		Kind: pipeline.KindInfo,
	})

	// Fan both process streams into the event channel; apply output is
	// informational either way, the exit code decides success.
	var g errgroup.Group
	g.Go(func() error { return forwardLines(ctx, stdout, out) })
	g.Go(func() error { return forwardLines(ctx, stderr, out) })
	readErr := g.Wait()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("executor: %s apply: %w", binary, err)
	}
	if readErr != nil {
		return fmt.Errorf("executor: read %s output: %w", binary, readErr)
	}
	return nil
}

func forwardLines(ctx context.Context, r interface{ Read([]byte) (int, error) }, out chan<- pipeline.StreamEvent) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		emit(ctx, out, pipeline.StreamEvent{Text: line, Kind: pipeline.KindInfo})
	}
	return scanner.Err()
}

func emit(ctx context.Context, out chan<- pipeline.StreamEvent, ev pipeline.StreamEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

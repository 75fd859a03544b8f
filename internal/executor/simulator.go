// Package executor provides the event producers the pipeline consumes: a
// rate-limited simulator for dry runs and a kubectl-backed runner for real
// clusters. Both satisfy the same suspend/emit contract.
package executor

import (
	"context"
	"fmt"
	"time"

	"faultctl/internal/pipeline"
)

const defaultSimulatorInterval = 600 * time.Millisecond

// Simulator emits a scripted execution stream without touching any cluster.
// It is the default producer.
type Simulator struct {
	// Interval paces the stream; zero means the default. Tests set a tiny
	// interval to keep runs fast.
	Interval time.Duration
}

// Run produces the simulated stream. The channel closes after the final
// event or as soon as ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, req pipeline.Request) <-chan pipeline.StreamEvent {
	interval := s.Interval
	if interval <= 0 {
		interval = defaultSimulatorInterval
	}
	script := buildScript(req)
	out := make(chan pipeline.StreamEvent)
	go func() {
		defer close(out)
		for i, ev := range script {
			if i > 0 {
				select {
				case <-time.After(interval):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func buildScript(req pipeline.Request) []pipeline.StreamEvent {
	action := req.Action
	if action == "" {
		action = "experiment"
	}
	target := req.Target
	if target == "" {
		target = "selected pods"
	}
	script := []pipeline.StreamEvent{
		{Text: fmt.Sprintf("validating %s manifest", req.DocumentKind), Kind: pipeline.KindInfo},
		{Text: fmt.Sprintf("applying %s to %s (simulated)", req.DocumentKind, target), Kind: pipeline.KindInfo},
		{Text: fmt.Sprintf("%s injected on %s", action, target), Kind: pipeline.KindChaos},
	}
	if req.Duration != "" {
		script = append(script, pipeline.StreamEvent{
			Text: fmt.Sprintf("holding fault for %s", req.Duration),
			Kind: pipeline.KindInfo,
		})
	}
	script = append(script,
		pipeline.StreamEvent{Text: fmt.Sprintf("%s recovered", target), Kind: pipeline.KindInfo},
		pipeline.StreamEvent{Text: "experiment completed", Kind: pipeline.KindSuccess},
	)
	return script
}

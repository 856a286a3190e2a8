// Command guidewalk-demo drives a complete guide session in memory: plan,
// draft two sections (one suspended on a choice prompt), walk two steps, and
// print every streamed event. It exists to show the wiring; the scripted
// planner stands in for a model-backed one such as
// features/guide/planner/anthropic.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"goa.design/clue/log"

	"guidewalk.dev/guidewalk/runtime/guide/command"
	"guidewalk.dev/guidewalk/runtime/guide/driver"
	"guidewalk.dev/guidewalk/runtime/guide/planner"
	"guidewalk.dev/guidewalk/runtime/guide/session/inmem"
	"guidewalk.dev/guidewalk/runtime/guide/stream"
	"guidewalk.dev/guidewalk/runtime/guide/telemetry"
)

// scriptedPlanner produces a fixed guide: an Overview section, an Approach
// section that suspends on a choice, and two steps confirmed by the reader.
type scriptedPlanner struct{}

func (scriptedPlanner) Plan(_ context.Context, item planner.WorkItemContext) (planner.Plan, error) {
	return planner.Plan{
		Description: fmt.Sprintf("Hands-on guide for %s.", item.Title),
		Sections:    []string{"Overview", "Approach"},
		NeedsSteps:  true,
		Steps:       []string{"Add the limiter package", "Wire the middleware"},
	}, nil
}

func (scriptedPlanner) GenerateSectionChunk(_ context.Context, req planner.SectionRequest) (planner.SectionOutcome, error) {
	switch req.Section {
	case "Overview":
		if req.Prior == "" {
			return planner.SectionOutcome{Kind: planner.OutcomeChunk, Chunk: "This guide adds rate limiting to the ingest API.\n"}, nil
		}
		return planner.SectionOutcome{Kind: planner.OutcomeComplete}, nil
	case "Approach":
		switch {
		case req.Resolution != nil:
			chunk := fmt.Sprintf("Going with the %s limiter.\n", req.Resolution.Label)
			if req.Resolution.Skipped {
				chunk = "No preference given, defaulting to a token bucket.\n"
			}
			return planner.SectionOutcome{Kind: planner.OutcomeChunk, Chunk: chunk}, nil
		case req.Prior == "":
			return planner.SectionOutcome{Kind: planner.OutcomeChoice, Choice: &planner.ChoiceSpec{
				Question: "Which rate limiting strategy should the guide use?",
				Options: []planner.ChoiceOption{
					{ID: "token", Label: "Token bucket", Description: "Smooths bursts, more state."},
					{ID: "fixed", Label: "Fixed window", Description: "Simple, allows edge bursts."},
				},
				SkipAllowed: true,
			}}, nil
		default:
			return planner.SectionOutcome{Kind: planner.OutcomeComplete}, nil
		}
	default:
		return planner.SectionOutcome{}, fmt.Errorf("unknown section %q", req.Section)
	}
}

func (scriptedPlanner) ConfirmStep(_ context.Context, req planner.StepRequest) (planner.StepPrompt, error) {
	return planner.StepPrompt{Kind: planner.StepPromptConfirmation, Confirmation: &planner.ConfirmationSpec{
		Question:    fmt.Sprintf("Is %q done?", req.StepTitle),
		Options:     []string{planner.StepCompleted, planner.StepNeedsClarification},
		SkipAllowed: true,
	}}, nil
}

func main() {
	ctx := log.Context(context.Background(), log.WithFormat(log.FormatTerminal))

	drv, err := driver.New(driver.Options{
		Store:   inmem.New(),
		Planner: scriptedPlanner{},
		Logger:  telemetry.NewClueLogger(),
	})
	if err != nil {
		log.Fatalf(ctx, err, "build driver")
	}

	sess, err := drv.Start(ctx, planner.WorkItemContext{
		WorkItemID:  "wi-101",
		Title:       "Rate limit the ingest API",
		Description: "Protect the ingest API from request bursts.",
	})
	if err != nil {
		log.Fatalf(ctx, err, "start session")
	}

	sink := stream.NewChanSink(64)

	// First turn: plans, drafts Overview, suspends on the Approach choice.
	if err := drv.Run(ctx, sess.ID, sink); err != nil {
		log.Fatalf(ctx, err, "run")
	}
	choiceID := drain(sink)

	// Answer the choice; generation resumes and suspends on step one.
	cmd := command.Command(command.Choice{ChoiceID: choiceID, Selected: "token", Note: "matches the gateway"})
	for {
		if err := drv.Respond(ctx, sess.ID, cmd, sink); err != nil {
			log.Fatalf(ctx, err, "respond")
		}
		if drain(sink) == "" {
			break
		}
		// Remaining prompts are step confirmations.
		cmd = command.Input{Value: planner.StepCompleted}
	}

	status, err := drv.Status(ctx, sess.ID)
	if err != nil {
		log.Fatalf(ctx, err, "status")
	}
	fmt.Printf("\nsession %s finished: phase=%s result=%s steps=%d/%d\n",
		status.SessionID, status.Phase, status.ResultID, status.StepsComplete, status.StepsTotal)
}

// drain prints every buffered event and returns the correlation ID of the
// prompt the turn suspended on, or "" when the turn ended terminally.
func drain(sink *stream.ChanSink) string {
	pending := ""
	for {
		select {
		case ev := <-sink.Events():
			payload, err := json.Marshal(ev.Payload())
			if err != nil {
				fmt.Fprintf(os.Stderr, "marshal %s: %v\n", ev.Type(), err)
				continue
			}
			fmt.Printf("%-28s %s\n", ev.Type(), payload)
			switch p := ev.Payload().(type) {
			case stream.ChoiceRequiredPayload:
				pending = p.ChoiceID
			case stream.StepConfirmationRequiredPayload:
				pending = p.PromptID
			}
		default:
			return pending
		}
	}
}

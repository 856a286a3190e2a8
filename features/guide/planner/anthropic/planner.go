// Package anthropic provides a planner.Planner backed by the Anthropic Claude
// Messages API. It renders the work item, prior section content, and any
// prompt resolution into Messages requests using
// github.com/anthropics/anthropic-sdk-go and decodes the model's structured
// JSON replies into plans, section outcomes, and step prompts.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"guidewalk.dev/guidewalk/runtime/guide/planner"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK client used by
	// the planner. It is satisfied by *sdk.MessageService so callers can pass
	// either a real client or a stub in tests.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// Options configures the Anthropic planner.
	Options struct {
		// Model is the Claude model identifier used for every request. Use
		// the typed model constants from github.com/anthropics/anthropic-sdk-go
		// (for example, string(sdk.ModelClaudeSonnet4_5_20250929)).
		Model string

		// MaxTokens caps each completion. Defaults to 4096 when zero or
		// negative.
		MaxTokens int

		// Temperature is passed on every request when positive.
		Temperature float64
	}

	// Planner implements planner.Planner on top of Anthropic Claude
	// Messages. It holds no per-session state; every request carries the
	// persisted session context.
	Planner struct {
		msg    MessagesClient
		model  string
		maxTok int64
		temp   float64
	}
)

const defaultMaxTokens = 4096

const (
	planSystem = `You plan hands-on guides for software work items. Reply with a single JSON
object and nothing else: {"description": string, "sections": [string, ...],
"needs_steps": bool, "steps": [string, ...]}. "description" positions the work
item in one or two sentences. "sections" names the guide sections in reading
order. Set "needs_steps" true and fill "steps" with ordered step titles only
when the item is executed as a sequence of concrete actions.`

	sectionSystem = `You write one section of a hands-on guide, one fragment per reply. Reply
with a single JSON object and nothing else, choosing exactly one form:
{"action": "chunk", "chunk": string} to append markdown text to the section;
{"action": "complete"} when the section needs no more text;
{"action": "choice", "choice": {"question": string, "options": [{"id": string,
"label": string, "description": string}, ...], "allow_custom": bool,
"skip_allowed": bool, "research_hint": string}} when you need the reader to
pick between approaches before continuing;
{"action": "input", "input": {"question": string, "placeholder": string,
"options": [string, ...], "skip_allowed": bool}} when you need free-form
information from the reader. Never repeat text that already appears in the
prior content.`

	stepSystem = `You guide a reader through one step of a hands-on guide. Reply with a
single JSON object and nothing else, choosing exactly one form:
{"kind": "confirmation", "confirmation": {"question": string, "options":
["completed", "needs_clarification"], "skip_allowed": bool}} to ask whether
the step is done;
{"kind": "choice", "choice": {"question": string, "options": [{"id": string,
"label": string, "description": string}, ...], "allow_custom": bool,
"skip_allowed": bool, "research_hint": string}} when the step requires a
decision between approaches;
{"kind": "redirect", "redirect": {"message": string}} when the step is better
handled in a free-form conversation.`
)

// New builds an Anthropic-backed planner from the provided Messages client
// and configuration options.
func New(msg MessagesClient, opts Options) (*Planner, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = defaultMaxTokens
	}
	return &Planner{
		msg:    msg,
		model:  opts.Model,
		maxTok: int64(maxTok),
		temp:   opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a planner using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, model string) (*Planner, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{Model: model})
}

// Plan asks the model for the ordered section names and step titles of the
// work item's guide.
func (p *Planner) Plan(ctx context.Context, item planner.WorkItemContext) (planner.Plan, error) {
	var b strings.Builder
	writeWorkItem(&b, item)
	b.WriteString("\nPlan the guide for this work item.\n")

	var doc planDocument
	if err := p.complete(ctx, planSystem, b.String(), &doc); err != nil {
		return planner.Plan{}, err
	}
	if len(doc.Sections) == 0 {
		return planner.Plan{}, errors.New("anthropic plan: no sections")
	}
	if doc.NeedsSteps && len(doc.Steps) == 0 {
		return planner.Plan{}, errors.New("anthropic plan: needs_steps set without steps")
	}
	return planner.Plan{
		Description: doc.Description,
		Sections:    doc.Sections,
		NeedsSteps:  doc.NeedsSteps,
		Steps:       doc.Steps,
	}, nil
}

// GenerateSectionChunk asks the model for the next outcome of one section.
func (p *Planner) GenerateSectionChunk(ctx context.Context, req planner.SectionRequest) (planner.SectionOutcome, error) {
	var b strings.Builder
	writeWorkItem(&b, req.WorkItem)
	fmt.Fprintf(&b, "\nSection: %s\n", req.Section)
	if req.Prior != "" {
		fmt.Fprintf(&b, "\nPrior content of this section:\n%s\n", req.Prior)
	} else {
		b.WriteString("\nThe section has no content yet.\n")
	}
	writeResolution(&b, req.Resolution)
	b.WriteString("\nProduce the next outcome for this section.\n")

	var doc sectionDocument
	if err := p.complete(ctx, sectionSystem, b.String(), &doc); err != nil {
		return planner.SectionOutcome{}, err
	}
	return doc.outcome()
}

// ConfirmStep asks the model for the prompt of one step.
func (p *Planner) ConfirmStep(ctx context.Context, req planner.StepRequest) (planner.StepPrompt, error) {
	var b strings.Builder
	writeWorkItem(&b, req.WorkItem)
	fmt.Fprintf(&b, "\nStep %d of %d: %s\n", req.StepNumber, req.TotalSteps, req.StepTitle)
	writeResolution(&b, req.Clarification)
	b.WriteString("\nProduce the prompt for this step.\n")

	var doc stepDocument
	if err := p.complete(ctx, stepSystem, b.String(), &doc); err != nil {
		return planner.StepPrompt{}, err
	}
	return doc.prompt()
}

// complete issues one Messages.New call and decodes the reply text as JSON
// into out.
func (p *Planner) complete(ctx context.Context, system, user string, out any) error {
	params := sdk.MessageNewParams{
		MaxTokens: p.maxTok,
		Model:     sdk.Model(p.model),
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(user))},
	}
	if p.temp > 0 {
		params.Temperature = sdk.Float(p.temp)
	}
	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return fmt.Errorf("anthropic messages.new: %w", err)
	}
	text := messageText(msg)
	if text == "" {
		return errors.New("anthropic: response has no text content")
	}
	if err := json.Unmarshal([]byte(stripFences(text)), out); err != nil {
		return fmt.Errorf("anthropic: decode response: %w", err)
	}
	return nil
}

func writeWorkItem(b *strings.Builder, item planner.WorkItemContext) {
	fmt.Fprintf(b, "Work item %s: %s\n", item.WorkItemID, item.Title)
	if item.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", item.Description)
	}
	if len(item.Dependencies) > 0 {
		fmt.Fprintf(b, "Depends on: %s\n", strings.Join(item.Dependencies, ", "))
	}
	if len(item.Dependents) > 0 {
		fmt.Fprintf(b, "Depended on by: %s\n", strings.Join(item.Dependents, ", "))
	}
}

func writeResolution(b *strings.Builder, res *planner.PromptResolution) {
	switch {
	case res == nil:
	case res.Skipped:
		b.WriteString("\nThe reader skipped the previous prompt.\n")
	case res.Selected != "":
		fmt.Fprintf(b, "\nThe reader chose %q", res.Label)
		if res.Note != "" {
			fmt.Fprintf(b, " and noted: %s", res.Note)
		}
		b.WriteString("\n")
	case res.Value != "":
		fmt.Fprintf(b, "\nThe reader answered: %s\n", res.Value)
	}
}

// messageText concatenates the text blocks of a Messages response.
func messageText(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// stripFences removes a surrounding markdown code fence when the model wraps
// its JSON reply in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type (
	planDocument struct {
		Description string   `json:"description"`
		Sections    []string `json:"sections"`
		NeedsSteps  bool     `json:"needs_steps"`
		Steps       []string `json:"steps"`
	}

	sectionDocument struct {
		Action string          `json:"action"`
		Chunk  string          `json:"chunk"`
		Choice *choiceDocument `json:"choice"`
		Input  *inputDocument  `json:"input"`
	}

	stepDocument struct {
		Kind         string                `json:"kind"`
		Confirmation *confirmationDocument `json:"confirmation"`
		Choice       *choiceDocument       `json:"choice"`
		Redirect     *redirectDocument     `json:"redirect"`
	}

	choiceDocument struct {
		Question     string           `json:"question"`
		Options      []optionDocument `json:"options"`
		AllowCustom  bool             `json:"allow_custom"`
		SkipAllowed  bool             `json:"skip_allowed"`
		ResearchHint string           `json:"research_hint"`
	}

	optionDocument struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	}

	inputDocument struct {
		Question    string   `json:"question"`
		Placeholder string   `json:"placeholder"`
		Options     []string `json:"options"`
		SkipAllowed bool     `json:"skip_allowed"`
	}

	confirmationDocument struct {
		Question    string   `json:"question"`
		Options     []string `json:"options"`
		SkipAllowed bool     `json:"skip_allowed"`
	}

	redirectDocument struct {
		Message string `json:"message"`
	}
)

func (d *sectionDocument) outcome() (planner.SectionOutcome, error) {
	switch d.Action {
	case "chunk":
		if d.Chunk == "" {
			return planner.SectionOutcome{}, errors.New("anthropic: chunk action without text")
		}
		return planner.SectionOutcome{Kind: planner.OutcomeChunk, Chunk: d.Chunk}, nil
	case "complete":
		return planner.SectionOutcome{Kind: planner.OutcomeComplete}, nil
	case "choice":
		spec, err := d.Choice.spec()
		if err != nil {
			return planner.SectionOutcome{}, err
		}
		return planner.SectionOutcome{Kind: planner.OutcomeChoice, Choice: spec}, nil
	case "input":
		if d.Input == nil || d.Input.Question == "" {
			return planner.SectionOutcome{}, errors.New("anthropic: input action without question")
		}
		return planner.SectionOutcome{Kind: planner.OutcomeInput, Input: &planner.InputSpec{
			Question:    d.Input.Question,
			Placeholder: d.Input.Placeholder,
			Options:     d.Input.Options,
			SkipAllowed: d.Input.SkipAllowed,
		}}, nil
	default:
		return planner.SectionOutcome{}, fmt.Errorf("anthropic: unknown section action %q", d.Action)
	}
}

func (d *stepDocument) prompt() (planner.StepPrompt, error) {
	switch d.Kind {
	case "confirmation":
		if d.Confirmation == nil || d.Confirmation.Question == "" {
			return planner.StepPrompt{}, errors.New("anthropic: confirmation without question")
		}
		opts := d.Confirmation.Options
		if len(opts) == 0 {
			opts = []string{planner.StepCompleted, planner.StepNeedsClarification}
		}
		return planner.StepPrompt{Kind: planner.StepPromptConfirmation, Confirmation: &planner.ConfirmationSpec{
			Question:    d.Confirmation.Question,
			Options:     opts,
			SkipAllowed: d.Confirmation.SkipAllowed,
		}}, nil
	case "choice":
		spec, err := d.Choice.spec()
		if err != nil {
			return planner.StepPrompt{}, err
		}
		return planner.StepPrompt{Kind: planner.StepPromptChoice, Choice: spec}, nil
	case "redirect":
		if d.Redirect == nil || d.Redirect.Message == "" {
			return planner.StepPrompt{}, errors.New("anthropic: redirect without message")
		}
		return planner.StepPrompt{Kind: planner.StepPromptRedirect, Redirect: &planner.RedirectSpec{Message: d.Redirect.Message}}, nil
	default:
		return planner.StepPrompt{}, fmt.Errorf("anthropic: unknown step prompt kind %q", d.Kind)
	}
}

func (d *choiceDocument) spec() (*planner.ChoiceSpec, error) {
	if d == nil || d.Question == "" {
		return nil, errors.New("anthropic: choice without question")
	}
	if len(d.Options) == 0 {
		return nil, errors.New("anthropic: choice without options")
	}
	opts := make([]planner.ChoiceOption, len(d.Options))
	for i, o := range d.Options {
		if o.ID == "" || o.Label == "" {
			return nil, fmt.Errorf("anthropic: choice option %d missing id or label", i)
		}
		opts[i] = planner.ChoiceOption{ID: o.ID, Label: o.Label, Description: o.Description}
	}
	return &planner.ChoiceSpec{
		Question:     d.Question,
		Options:      opts,
		AllowCustom:  d.AllowCustom,
		SkipAllowed:  d.SkipAllowed,
		ResearchHint: d.ResearchHint,
	}, nil
}

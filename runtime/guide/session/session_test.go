package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSection(t *testing.T) {
	s := Session{Sections: []Section{
		{Name: "Overview", Complete: true},
		{Name: "Approach"},
		{Name: "Risks"},
	}}
	next := s.NextSection()
	require.NotNil(t, next)
	assert.Equal(t, "Approach", next.Name)

	// The returned pointer aliases the session so content accrues in place.
	next.Content = "text"
	assert.Equal(t, "text", s.Sections[1].Content)

	s.Sections[1].Complete = true
	s.Sections[2].Complete = true
	assert.Nil(t, s.NextSection())
}

func TestCurrentStep(t *testing.T) {
	s := Session{}
	assert.Equal(t, 1, s.CurrentStep())

	s.Steps = []Step{
		{Number: 1, Title: "a", Complete: true},
		{Number: 2, Title: "b"},
		{Number: 3, Title: "c"},
	}
	assert.Equal(t, 2, s.CurrentStep())

	s.Steps[1].Complete = true
	s.Steps[2].Complete = true
	// Past-the-end when everything is complete.
	assert.Equal(t, 4, s.CurrentStep())
}

func TestTerminal(t *testing.T) {
	for phase, want := range map[Phase]bool{
		PhasePlanning: false,
		PhaseDrafting: false,
		PhaseStepping: false,
		PhaseDone:     true,
		PhaseError:    true,
	} {
		assert.Equal(t, want, (&Session{Phase: phase}).Terminal(), string(phase))
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Session{
		ID:    "s1",
		Phase: PhaseDrafting,
		WorkItem: WorkItem{
			Title:        "Add caching",
			Dependencies: []string{"wi-0"},
		},
		Sections:     []Section{{Name: "Overview", Content: "text"}},
		PlannedSteps: []string{"one", "two"},
		Steps:        []Step{{Number: 1, Title: "one"}},
		Decisions:    []Decision{{StepNumber: 1, Description: "chose A"}},
		Pending: &PendingPrompt{
			Kind: PromptChoice,
			ID:   "p1",
			Choice: &ChoiceDetails{
				Options: []ChoiceOption{{ID: "a", Label: "A"}},
			},
		},
	}

	clone := orig.Clone()
	clone.WorkItem.Dependencies[0] = "other"
	clone.Sections[0].Content = "changed"
	clone.PlannedSteps[0] = "changed"
	clone.Steps[0].Complete = true
	clone.Decisions[0].Description = "changed"
	clone.Pending.Choice.Options[0].Label = "changed"
	clone.Pending.ID = "p2"

	assert.Equal(t, "wi-0", orig.WorkItem.Dependencies[0])
	assert.Equal(t, "text", orig.Sections[0].Content)
	assert.Equal(t, "one", orig.PlannedSteps[0])
	assert.False(t, orig.Steps[0].Complete)
	assert.Equal(t, "chose A", orig.Decisions[0].Description)
	assert.Equal(t, "A", orig.Pending.Choice.Options[0].Label)
	assert.Equal(t, "p1", orig.Pending.ID)
}

func TestStepLookup(t *testing.T) {
	s := Session{Steps: []Step{{Number: 1, Title: "a"}, {Number: 2, Title: "b"}}}
	st := s.Step(2)
	require.NotNil(t, st)
	assert.Equal(t, "b", st.Title)
	assert.Nil(t, s.Step(0))
	assert.Nil(t, s.Step(3))
}

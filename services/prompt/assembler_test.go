package prompt

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"
)

type fakeTemplateRepo struct {
	global     string
	overrides  map[int]string
	globalGets int
	upserted   map[string]string
}

func (f *fakeTemplateRepo) GetGlobalTemplate() (*models.PromptTemplate, error) {
	f.globalGets++
	if f.global == "" {
		return nil, db.ErrTemplateNotFound
	}
	return &models.PromptTemplate{ID: 1, Scope: models.PromptTemplateScopeGlobal, Body: f.global}, nil
}

func (f *fakeTemplateRepo) GetModuleTemplate(moduleID int) (*models.PromptTemplate, error) {
	body, ok := f.overrides[moduleID]
	if !ok {
		return nil, db.ErrTemplateNotFound
	}
	return &models.PromptTemplate{ID: 2, Scope: strconv.Itoa(moduleID), Body: body}, nil
}

func (f *fakeTemplateRepo) UpsertTemplate(scope, body string) (*models.PromptTemplate, error) {
	if f.upserted == nil {
		f.upserted = make(map[string]string)
	}
	f.upserted[scope] = body
	if scope == models.PromptTemplateScopeGlobal {
		f.global = body
	}
	return &models.PromptTemplate{Scope: scope, Body: body}, nil
}

func TestAssembleFailsWithoutGlobalTemplate(t *testing.T) {
	assembler := NewAssembler(&fakeTemplateRepo{})

	_, err := assembler.Assemble(3, Context{})
	if !errors.Is(err, ErrGlobalTemplateMissing) {
		t.Fatalf("Assemble() error = %v, expected ErrGlobalTemplateMissing", err)
	}
	if !strings.Contains(err.Error(), "missing configuration") {
		t.Errorf("error %q should read as a configuration problem", err.Error())
	}
}

func TestAssembleGlobalOnly(t *testing.T) {
	repo := &fakeTemplateRepo{global: "Tutor a {{.LearnerRole}} whose familiarity is {{.Familiarity}}."}
	assembler := NewAssembler(repo)

	got, err := assembler.Assemble(3, Context{LearnerRole: "analyst", Familiarity: "low"})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if got != "Tutor a analyst whose familiarity is low." {
		t.Errorf("prompt = %q, expected the rendered global template", got)
	}
	if strings.Contains(got, CustomizationHeading) {
		t.Errorf("prompt contains the customization heading with no override configured")
	}
}

func TestAssembleAppendsModuleOverride(t *testing.T) {
	repo := &fakeTemplateRepo{
		global:    "Base instructions.",
		overrides: map[int]string{3: "Always use {{.Language}} medical terminology."},
	}
	assembler := NewAssembler(repo)

	got, err := assembler.Assemble(3, Context{Language: "German"})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	wantSection := CustomizationHeading + "\n\nAlways use German medical terminology."
	if !strings.HasPrefix(got, "Base instructions.") {
		t.Errorf("prompt = %q, expected it to start with the global template", got)
	}
	if !strings.Contains(got, wantSection) {
		t.Errorf("prompt = %q, expected the override under %q", got, CustomizationHeading)
	}

	// A different module without an override stays global-only.
	other, err := assembler.Assemble(4, Context{})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if strings.Contains(other, CustomizationHeading) {
		t.Errorf("module 4 prompt picked up module 3's override")
	}
}

func TestAssembleBrokenOverrideFallsBackToGlobal(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{name: "parse failure", override: "Unclosed {{.Language"},
		{name: "render failure", override: "References {{.NoSuchField}} badly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeTemplateRepo{
				global:    "Base instructions.",
				overrides: map[int]string{3: tt.override},
			}
			assembler := NewAssembler(repo)

			got, err := assembler.Assemble(3, Context{Language: "German"})
			if err != nil {
				t.Fatalf("Assemble() error = %v, a broken override must not fail the turn", err)
			}
			if got != "Base instructions." {
				t.Errorf("prompt = %q, expected the global template alone", got)
			}
		})
	}
}

func TestAssembleCachesParsedGlobalTemplate(t *testing.T) {
	repo := &fakeTemplateRepo{global: "Stable instructions."}
	assembler := NewAssembler(repo)

	for i := 0; i < 3; i++ {
		if _, err := assembler.Assemble(3, Context{}); err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
	}

	if repo.globalGets != 1 {
		t.Errorf("global template fetched %d times, expected once per process", repo.globalGets)
	}
}

func TestAssembleMissingGlobalIsNotCached(t *testing.T) {
	repo := &fakeTemplateRepo{}
	assembler := NewAssembler(repo)

	if _, err := assembler.Assemble(3, Context{}); !errors.Is(err, ErrGlobalTemplateMissing) {
		t.Fatalf("Assemble() error = %v, expected ErrGlobalTemplateMissing", err)
	}

	// Seeding the template afterwards must heal the assembler without a
	// process restart.
	if _, err := repo.UpsertTemplate(models.PromptTemplateScopeGlobal, "Now configured."); err != nil {
		t.Fatalf("UpsertTemplate() error = %v", err)
	}

	got, err := assembler.Assemble(3, Context{})
	if err != nil {
		t.Fatalf("Assemble() after seeding error = %v", err)
	}
	if got != "Now configured." {
		t.Errorf("prompt = %q, expected the freshly seeded template", got)
	}
}

func TestDefaultGlobalTemplateAdaptsToFamiliarity(t *testing.T) {
	repo := &fakeTemplateRepo{global: DefaultGlobalTemplate}
	assembler := NewAssembler(repo)

	baseContext := Context{
		LearnerRole: "support engineer",
		Objectives: []ObjectiveLine{
			{ID: 101, Text: "Explain what a token is", Status: "completed"},
			{ID: 102, Text: "Describe embeddings", Status: "not_started"},
		},
	}

	high := baseContext
	high.Familiarity = "high"
	highPrompt, err := assembler.Assemble(3, high)
	if err != nil {
		t.Fatalf("Assemble(high) error = %v", err)
	}

	if !strings.Contains(highPrompt, "check off multiple objectives in a single exchange") {
		t.Errorf("high-familiarity prompt does not allow multi-objective check-offs")
	}
	if strings.Contains(highPrompt, "one objective at a time") {
		t.Errorf("high-familiarity prompt still carries the step-by-step strategy")
	}

	low := baseContext
	low.Familiarity = "low"
	lowPrompt, err := assembler.Assemble(3, low)
	if err != nil {
		t.Fatalf("Assemble(low) error = %v", err)
	}

	if !strings.Contains(lowPrompt, "one objective at a time") {
		t.Errorf("low-familiarity prompt does not enforce one objective at a time")
	}
	if strings.Contains(lowPrompt, "check off multiple objectives in a single exchange") {
		t.Errorf("low-familiarity prompt allows rapid multi-objective check-offs")
	}

	// Both strategies demand observable evidence before a check-off.
	for _, p := range []string{highPrompt, lowPrompt} {
		if !strings.Contains(p, "observable evidence") {
			t.Errorf("prompt does not require observable evidence")
		}
		if !strings.Contains(p, "- [completed] (objective 101) Explain what a token is") {
			t.Errorf("prompt does not list objectives with status and ID")
		}
	}
}

func TestDefaultGlobalTemplateOptionalSections(t *testing.T) {
	repo := &fakeTemplateRepo{global: DefaultGlobalTemplate}
	assembler := NewAssembler(repo)

	bare, err := assembler.Assemble(3, Context{LearnerRole: "learner", Familiarity: "low"})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if strings.Contains(bare, "MODULE KNOWLEDGE CONTEXT") {
		t.Errorf("knowledge section rendered with no excerpts")
	}
	if strings.Contains(bare, "Always respond in") {
		t.Errorf("language line rendered with no language set")
	}

	full, err := assembler.Assemble(3, Context{
		LearnerRole: "learner",
		Familiarity: "low",
		Language:    "French",
		Knowledge:   []string{"[Transformer Basics / Attention] Attention relates tokens to each other."},
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !strings.Contains(full, "Always respond in French") {
		t.Errorf("language instruction missing from the prompt")
	}
	if !strings.Contains(full, "Attention relates tokens to each other.") {
		t.Errorf("knowledge excerpt missing from the prompt")
	}
}

func TestSeedDefaultGlobalTemplate(t *testing.T) {
	t.Run("seeds an empty store", func(t *testing.T) {
		repo := &fakeTemplateRepo{}
		if err := SeedDefaultGlobalTemplate(repo); err != nil {
			t.Fatalf("SeedDefaultGlobalTemplate() error = %v", err)
		}
		if repo.upserted[models.PromptTemplateScopeGlobal] != DefaultGlobalTemplate {
			t.Errorf("store was not seeded with the default template")
		}
	})

	t.Run("leaves an existing template untouched", func(t *testing.T) {
		repo := &fakeTemplateRepo{global: "Admin-tuned instructions."}
		if err := SeedDefaultGlobalTemplate(repo); err != nil {
			t.Fatalf("SeedDefaultGlobalTemplate() error = %v", err)
		}
		if len(repo.upserted) != 0 {
			t.Errorf("existing template was overwritten: %v", repo.upserted)
		}
		if repo.global != "Admin-tuned instructions." {
			t.Errorf("global template changed to %q", repo.global)
		}
	})
}

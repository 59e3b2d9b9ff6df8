package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"text/template"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"

	"go.uber.org/zap"
)

// ErrGlobalTemplateMissing means the process-wide system prompt template has
// not been configured. Sessions cannot proceed without it.
var ErrGlobalTemplateMissing = errors.New("missing configuration: global prompt template")

// ObjectiveLine is one objective row as the template sees it.
type ObjectiveLine struct {
	ID     int
	Text   string
	Status string
}

// Context carries everything the templates may reference.
type Context struct {
	LearnerRole string
	Familiarity string
	Language    string
	Objectives  []ObjectiveLine
	Knowledge   []string
}

// Assembler renders the agent's system prompt from the global template plus
// an optional per-module override. The global template is parsed once and
// cached; overrides are fetched and rendered per call so admins can edit
// them live.
type Assembler struct {
	repo db.PromptTemplateRepository

	mu     sync.Mutex
	global *template.Template
}

func NewAssembler(repo db.PromptTemplateRepository) *Assembler {
	return &Assembler{repo: repo}
}

// Assemble produces the full system prompt for a module. A broken or
// missing override degrades to the global-only prompt; a broken or missing
// global template is a fatal configuration error and propagates.
func (a *Assembler) Assemble(moduleID int, pctx Context) (string, error) {
	base, err := a.renderGlobal(pctx)
	if err != nil {
		return "", err
	}

	override, err := a.repo.GetModuleTemplate(moduleID)
	if err != nil {
		if !errors.Is(err, db.ErrTemplateNotFound) {
			zap.S().Warnf("failed to load override template for module %d, using global prompt only: %v", moduleID, err)
		}
		return base, nil
	}

	section, err := renderOverride(override.Body, pctx)
	if err != nil {
		zap.S().Warnf("override template for module %d failed to render, using global prompt only: %v", moduleID, err)
		return base, nil
	}

	return base + "\n\n" + CustomizationHeading + "\n\n" + section, nil
}

func (a *Assembler) renderGlobal(pctx Context) (string, error) {
	tmpl, err := a.globalTemplate()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pctx); err != nil {
		return "", fmt.Errorf("failed to render global template: %w", err)
	}

	return buf.String(), nil
}

func (a *Assembler) globalTemplate() (*template.Template, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.global != nil {
		return a.global, nil
	}

	row, err := a.repo.GetGlobalTemplate()
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			return nil, ErrGlobalTemplateMissing
		}
		return nil, fmt.Errorf("failed to load global template: %w", err)
	}

	parsed, err := template.New("global").Parse(row.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse global template: %w", err)
	}

	a.global = parsed
	return parsed, nil
}

// renderOverride parses and executes a per-module override body. Callers
// catch the error and fall back to the global prompt.
func renderOverride(body string, pctx Context) (string, error) {
	tmpl, err := template.New("override").Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse override template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pctx); err != nil {
		return "", fmt.Errorf("failed to render override template: %w", err)
	}

	return buf.String(), nil
}

// SeedDefaultGlobalTemplate installs the shipped global template when none
// is configured yet. Existing templates are left untouched.
func SeedDefaultGlobalTemplate(repo db.PromptTemplateRepository) error {
	_, err := repo.GetGlobalTemplate()
	if err == nil {
		return nil
	}

	if !errors.Is(err, db.ErrTemplateNotFound) {
		return fmt.Errorf("failed to check global template: %w", err)
	}

	if _, err := repo.UpsertTemplate(models.PromptTemplateScopeGlobal, DefaultGlobalTemplate); err != nil {
		return fmt.Errorf("failed to seed global template: %w", err)
	}

	zap.S().Info("seeded default global prompt template")
	return nil
}

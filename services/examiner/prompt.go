package examiner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/models"
)

// gradingMaxChars caps each conversation snippet handed to the grading
// model so one long exchange cannot blow the prompt budget.
const gradingMaxChars = 2000

const gradingSystemPrompt = `You are a strict examiner for a tutoring platform. You review one exchange between a learner and a tutor and decide which open learning objectives the learner has now demonstrably met.

Rules:
- Pass an objective only when the learner's own words show the specific competency the objective describes. Enthusiasm, vague agreement, or the tutor explaining something is never enough.
- When you are uncertain, the objective is not passed.
- The evidence field must quote or closely paraphrase what the learner actually said.
- Return ONLY a JSON array of objects with the fields "objective_id" (number), "passed" (boolean), and "evidence" (string). No commentary, no markdown.`

// ObjectiveJudgment is one grading verdict parsed from the model output.
type ObjectiveJudgment struct {
	ObjectiveID int    `json:"objective_id"`
	Passed      bool   `json:"passed"`
	Evidence    string `json:"evidence"`
}

func buildGradingPrompt(objectives []models.ObjectiveWithStatus, learnerMessage, agentReply string) string {
	var b strings.Builder

	b.WriteString("Open learning objectives:\n")
	for _, o := range objectives {
		b.WriteString(fmt.Sprintf("- objective %d: %s", o.Objective.ID, o.Objective.Text))
		if len(o.Objective.SourceRefs) > 0 {
			b.WriteString(fmt.Sprintf(" (source material: %s)", strings.Join(o.Objective.SourceRefs, ", ")))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nLearner message:\n")
	b.WriteString(truncateForGrading(learnerMessage))
	b.WriteString("\n\nTutor reply:\n")
	b.WriteString(truncateForGrading(agentReply))
	b.WriteString("\n\nJudge each open objective against what the learner said.")

	return b.String()
}

func truncateForGrading(s string) string {
	runes := []rune(s)
	if len(runes) <= gradingMaxChars {
		return s
	}
	return string(runes[:gradingMaxChars])
}

// parseJudgments reads the grading model's output. Models sometimes wrap
// the array in code fences or preamble text, so it extracts the outermost
// JSON array rather than unmarshalling the raw output.
func parseJudgments(output string) ([]ObjectiveJudgment, error) {
	cleaned := strings.TrimSpace(output)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in grading output")
	}

	var judgments []ObjectiveJudgment
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &judgments); err != nil {
		return nil, fmt.Errorf("failed to parse grading output: %w", err)
	}

	return judgments, nil
}

package examiner

import (
	"strings"
	"testing"

	"github.com/gaspardhassenforder/elearning-sub000/models"
)

func openObjective(id int, text string, refs ...string) models.ObjectiveWithStatus {
	return models.ObjectiveWithStatus{
		Objective: models.LearningObjective{ID: id, Text: text, SourceRefs: refs},
	}
}

func TestBuildGradingPrompt(t *testing.T) {
	objectives := []models.ObjectiveWithStatus{
		openObjective(101, "Explain what a token is", "intro.md", "tokenizer-deep-dive.md"),
		openObjective(102, "Describe what an embedding represents"),
	}

	prompt := buildGradingPrompt(objectives, "A token is a chunk of text, like a subword.", "Exactly right, and models read sequences of them.")

	if !strings.Contains(prompt, "- objective 101: Explain what a token is (source material: intro.md, tokenizer-deep-dive.md)") {
		t.Errorf("prompt does not list objective 101 with its source material:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- objective 102: Describe what an embedding represents\n") {
		t.Errorf("prompt does not list objective 102:\n%s", prompt)
	}
	if strings.Contains(prompt, "objective 102: Describe what an embedding represents (source material") {
		t.Errorf("prompt invents source material for an objective without refs")
	}

	if !strings.Contains(prompt, "Learner message:\nA token is a chunk of text, like a subword.") {
		t.Errorf("prompt is missing the learner message:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Tutor reply:\nExactly right, and models read sequences of them.") {
		t.Errorf("prompt is missing the tutor reply:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "Judge each open objective against what the learner said.") {
		t.Errorf("prompt does not end with the judging instruction:\n%s", prompt)
	}
}

func TestBuildGradingPromptTruncatesLongMessages(t *testing.T) {
	longMessage := strings.Repeat("a", gradingMaxChars-5) + "UNIQUETAIL"

	prompt := buildGradingPrompt([]models.ObjectiveWithStatus{openObjective(1, "x")}, longMessage, longMessage)

	if strings.Contains(prompt, "UNIQUETAIL") {
		t.Errorf("prompt contains text beyond the per-message cap")
	}
	if !strings.Contains(prompt, strings.Repeat("a", 100)) {
		t.Errorf("prompt lost the start of the long message")
	}
}

func TestGradingSystemPromptIsConservative(t *testing.T) {
	checks := []string{
		"When you are uncertain, the objective is not passed.",
		"the tutor explaining something is never enough",
		"quote or closely paraphrase what the learner actually said",
	}
	for _, want := range checks {
		if !strings.Contains(gradingSystemPrompt, want) {
			t.Errorf("grading system prompt is missing %q", want)
		}
	}
}

func TestParseJudgments(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    int
		wantErr bool
	}{
		{
			name:   "plain array",
			output: `[{"objective_id":1,"passed":true,"evidence":"said it"}]`,
			want:   1,
		},
		{
			name:   "fenced json block",
			output: "```json\n[{\"objective_id\":1,\"passed\":true,\"evidence\":\"said it\"},{\"objective_id\":2,\"passed\":false,\"evidence\":\"\"}]\n```",
			want:   2,
		},
		{
			name:   "bare fence",
			output: "```\n[{\"objective_id\":1,\"passed\":false,\"evidence\":\"\"}]\n```",
			want:   1,
		},
		{
			name:   "surrounding prose",
			output: `Here is my assessment: [{"objective_id":3,"passed":true,"evidence":"quoted words"}] Let me know if you need more.`,
			want:   1,
		},
		{
			name:   "empty array",
			output: `[]`,
			want:   0,
		},
		{
			name:    "no array at all",
			output:  "The learner did very well today.",
			wantErr: true,
		},
		{
			name:    "broken json inside the array",
			output:  `[{"objective_id":}]`,
			wantErr: true,
		},
		{
			name:    "empty output",
			output:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judgments, err := parseJudgments(tt.output)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseJudgments() succeeded with %d judgments, expected an error", len(judgments))
				}
				return
			}

			if err != nil {
				t.Fatalf("parseJudgments() error = %v", err)
			}
			if len(judgments) != tt.want {
				t.Errorf("parsed %d judgments, expected %d", len(judgments), tt.want)
			}
		})
	}
}

func TestParseJudgmentsFields(t *testing.T) {
	judgments, err := parseJudgments(`[{"objective_id":7,"passed":true,"evidence":"compared embeddings to coordinates"}]`)
	if err != nil {
		t.Fatalf("parseJudgments() error = %v", err)
	}

	j := judgments[0]
	if j.ObjectiveID != 7 || !j.Passed || j.Evidence != "compared embeddings to coordinates" {
		t.Errorf("judgment = %+v, expected all fields populated", j)
	}
}

package agent

import "testing"

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text passes through",
			input: "Let's look at tokenization next.",
			want:  "Let's look at tokenization next.",
		},
		{
			name:  "paired think tags are removed with their content",
			input: "<think>the learner seems confused</think>Let's slow down.",
			want:  "Let's slow down.",
		},
		{
			name:  "paired thinking tags are removed with their content",
			input: "Good question. <thinking>check objective 2 next</thinking>Here's the idea.",
			want:  "Good question. Here's the idea.",
		},
		{
			name:  "multiple pairs are all removed",
			input: "<think>a</think>First part. <think>b</think>Second part.",
			want:  "First part. Second part.",
		},
		{
			name:  "unclosed opening tag drops the rest",
			input: "Here's your answer. <thinking>and now I will",
			want:  "Here's your answer.",
		},
		{
			name:  "bare closing tag drops everything before it",
			input: "reasoning that leaked</think>The actual reply.",
			want:  "The actual reply.",
		},
		{
			name:  "result is trimmed",
			input: "  <think>x</think>  Reply.  ",
			want:  "Reply.",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "only a reasoning block yields nothing",
			input: "<thinking>all internal</thinking>",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeText(tt.input); got != tt.want {
				t.Errorf("sanitizeText(%q) = %q, expected %q", tt.input, got, tt.want)
			}
		})
	}
}

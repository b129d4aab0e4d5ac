package generator

import "fmt"

// blueprint pins the question format: fill-in-the-blank with exactly four
// short options and enough context that only one option fits.
const blueprint = `FORMAT: Fill in the Blanks. The 'question' string must contain a '____' gap. ` +
	`DO NOT use (a)/(b)/(c) segments. ` +
	`The 'options' array must contain 4 single words or short phrases that could potentially fill the gap. ` +
	`QUALITY: Focus on testing subject-verb agreement, phrasal verbs, prepositions, or context-heavy vocabulary. ` +
	`The sentence must provide enough context for only ONE option to be correct.`

// buildPrompt assembles the generation prompt around a seed question.
// The seed travels as raw JSON so the model sees the full metadata shape it
// should echo in its output.
func buildPrompt(topic, seedJSON string, count int) string {
	if topic == "" {
		topic = "Fill in the Blanks"
	}
	return fmt.Sprintf(`Act as a Senior Exam Setter for SSC-CGL and IBPS.

CRITICAL: Create UNIQUE questions. DO NOT repeat patterns.
Each question MUST be distinctly different in:
- Vocabulary used
- Sentence structure
- Context/scenario

Create %d HIGH-QUALITY 'Fill in the Blank' questions.

TOPIC: %s

SEED QUESTION (style and metadata reference):
%s

%s

STRICT REQUIREMENTS:
1. QUESTION FORMAT: Use '____' to represent the blank
2. OPTIONS: Provide exactly 4 options
3. UNIQUENESS: Each question must test a DIFFERENT concept
4. VARIETY: Mix verb tenses, contexts, and vocabulary

RESPONSE FORMAT: Respond with ONLY a JSON array. Each element must have the
keys "qid", "question", "options" (array of 4 strings), "correct" (integer
index), and may have "difficulty", "topic", "subtopic", "tags".
No markdown fences, no commentary.`, count, topic, seedJSON, blueprint)
}

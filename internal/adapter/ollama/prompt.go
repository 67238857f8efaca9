package ollama

import "fmt"

const systemInstruction = `You are an expert educational assistant and curriculum designer. Your task is to analyze a provided lecture transcription and generate a structured set of learning aids. The output must be in a single, valid JSON object.

Rules:

Summary: The summary must be a single, concise paragraph (4-6 sentences) capturing the main argument and topics of the lecture.

Insights: The insights must be a list of 5-7 distinct, important facts, definitions, or concepts from the text. Each insight should be a single, clear sentence.

Quiz: The quiz must contain exactly 5 multiple-choice questions.

Quiz Structure: Each question must have:
  - A question text.
  - A list of 4 options.
  - The correct_answer (which must be one of the provided options).

Relevance: All summaries, insights, and questions must be 100% derived from the provided transcription. Do not introduce external information.`

const userPromptFormat = `Here is the transcription from an educational lecture. Please analyze it and provide the summary, key insights, and a 5-question multiple-choice quiz based on the rules.

Transcription:

%s


Output Format:

Provide your response as a single, valid JSON object using this exact schema:

{
  "summary": "A single-paragraph summary of the lecture content...",
  "insights": [
    "The first key insight or definition.",
    "The second key insight or fact.",
    "..."
  ],
  "quiz": [
    {
      "question": "What is the first question?",
      "options": [
        "Option A",
        "Option B",
        "Option C",
        "Option D"
      ],
      "correct_answer": "Option B"
    }
  ]
}

IMPORTANT: Return ONLY the JSON object, nothing else.`

// buildPrompt joins the fixed system instruction with the transcript and the
// output schema example into the single prompt string the generate endpoint
// expects.
func buildPrompt(transcript string) string {
	return systemInstruction + "\n\n" + fmt.Sprintf(userPromptFormat, transcript)
}

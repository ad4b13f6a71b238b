package ai

import "fmt"

func analysisPrompt(target, native, paragraph string) string {
	return fmt.Sprintf(`You are a %[1]s language learning assistant. Given the %[1]s paragraph below:

Input paragraph: %[3]s

respond with this output in JSON format:

{
"corrected_paragraph": "If there is a grammar or spelling mistake in the paragraph, correct it. The corrected_paragraph must always contain the correct version.",
"translated_paragraph": "The %[2]s translation of the entire paragraph.",
"phrases": [
{"phrase": "base form of an important phrase", "translation": "%[2]s translation of the base form of the phrase"}
],
"words": [
{"word": "base form of an important word", "translation": "%[2]s translation of the base form of the word"}
]
}

Instructions:
The "phrases" array should contain the most important phrases that are useful for language learners to study.
The "words" array should contain the most important words that are useful for language learners to study.

Only return valid JSON, no extra text.`, target, native, paragraph)
}

func rootPrompt(target, native, term string) string {
	return fmt.Sprintf(`Analyze the %s word %q and provide its root in %s.
Please provide a concise explanation (1-2 sentences) of the word's root, origin, and meaning.
If it's a compound word, explain the parts.
Do not include any markdown formatting or special characters in your response.`, target, term, native)
}

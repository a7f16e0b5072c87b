package assist

import (
	"fmt"
	"time"
)

// buildPrompt renders the extraction instructions for one user message. All
// relative dates are spelled out against referenceDate so the model never has
// to guess what "tomorrow" means.
func buildPrompt(userText string, referenceDate time.Time) string {
	today := referenceDate.Format("2006-01-02")
	tomorrow := referenceDate.AddDate(0, 0, 1).Format("2006-01-02")
	dayAfter := referenceDate.AddDate(0, 0, 2).Format("2006-01-02")

	return fmt.Sprintf(`You are a scheduling assistant. Analyze the user's message and extract event information as JSON.

Current date: %s (%s)

User message: %q

Respond in exactly this JSON format:
{
  "title": "event title",
  "date": "YYYY-MM-DD",
  "startTime": "HH:MM",
  "endTime": "HH:MM",
  "isAllDay": false,
  "description": "details",
  "priority": "normal",
  "color": "blue"
}

Rules:
1. The date must be in YYYY-MM-DD format.
2. "tomorrow" = %s
3. "day after tomorrow" = %s
4. If no time is mentioned, use 09:00 as the start and one hour later as the end.
5. If the message says "all day", set isAllDay to true and leave both times empty.
6. Convert afternoon/evening times to 24-hour format.
7. If the message does not describe an addable event, answer null.
8. Answer with the JSON only, no other text.

Color guide:
- work/meetings: blue
- health/exercise: green
- personal/appointments: purple
- leisure/rest: orange
- important: red
- study/education: yellow`,
		today, referenceDate.Weekday(), userText, tomorrow, dayAfter)
}

// buildRequest wraps a prompt in the generateContent request body. Low
// temperature keeps the extraction deterministic.
func buildRequest(prompt string) map[string]any {
	safety := make([]map[string]string, 0, 4)
	for _, cat := range []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	} {
		safety = append(safety, map[string]string{
			"category":  cat,
			"threshold": "BLOCK_MEDIUM_AND_ABOVE",
		})
	}

	return map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     0.1,
			"topK":            1,
			"topP":            1,
			"maxOutputTokens": 2048,
		},
		"safetySettings": safety,
	}
}

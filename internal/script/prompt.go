package script

import (
	"fmt"
	"strings"

	"mediafactory/internal/jobs"
	"mediafactory/internal/language"
)

const systemPrompt = `You are a concise expert content writer for YouTube. Output valid JSON only.

Produce a JSON object:
{
  "title": "<clickable title under 80 chars>",
  "hook": "<10-15s hook that promises a result>",
  "sections": [
    {"heading": "<heading>", "body": "<paragraph of 40-90 words>", "b_roll": "<short b-roll description>"}
  ],
  "cta": "<short call to action>",
  "tags": ["tag1", "tag2"],
  "shorts": ["short clip script 1", "short clip script 2"]
}
Rules:
- Keep JSON strict, no extra commentary.
- Each "body" must be actionable and include one explicit example.
- Do not produce disallowed content (hate, illegal, sexual, violent). If the topic is disallowed, return:
{"error":"content_not_allowed","reason":"<explain briefly>"}`

// averageWordsPerSection matches the 40-90 word section bodies the prompt asks for.
const averageWordsPerSection = 65

func userPrompt(job *jobs.Job, wordsPerMinute int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "topic: %s\n", strings.TrimSpace(job.Topic))
	if niche := strings.TrimSpace(job.Niche); niche != "" {
		fmt.Fprintf(&b, "niche: %s\n", niche)
	}
	fmt.Fprintf(&b, "target_language: %s (%s)\n", language.DisplayName(job.Language), job.Language)
	fmt.Fprintf(&b, "length_seconds: %d\n", job.LengthSeconds)
	if sections := sectionTarget(job.LengthSeconds, wordsPerMinute); sections > 0 {
		fmt.Fprintf(&b, "suggested_sections: %d\n", sections)
	}
	return b.String()
}

func sectionTarget(lengthSeconds, wordsPerMinute int) int {
	if lengthSeconds <= 0 || wordsPerMinute <= 0 {
		return 0
	}
	words := lengthSeconds * wordsPerMinute / 60
	sections := words / averageWordsPerSection
	if sections < 1 {
		return 1
	}
	return sections
}

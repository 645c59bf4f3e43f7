package tutor

import (
	"encoding/json"
	"fmt"
	"strings"
)

const topicSystemPrompt = `You are a STEM topic detector.
Identify the main STEM topic and the important variables (e.g. v0, angle, g, refractive index, resistance).
Respond ONLY with a JSON object, no markdown, no explanations:
{"topic": "Projectile Motion", "variables": ["v0", "angle", "g"]}
If you cannot tell, answer {"topic": "Unknown", "variables": []}.`

func topicTextPrompt(text string) string {
	return "Detect the STEM topic of this text:\n\n" + text
}

func topicVisionPrompt(hint string) string {
	p := "Detect the STEM topic shown in this scanned image."
	if h := strings.TrimSpace(hint); h != "" {
		p += "\nThe student added this note: " + h
	}
	return p
}

const notesSystemPrompt = `You are an expert STEM tutor. Output ONLY valid JSON, no markdown, no backticks.
Use exactly these keys:
{
  "explanation": "concept explanation in simple words",
  "variable_breakdown": {"symbol": "meaning"},
  "formulas": ["formula with a brief meaning"],
  "example": "one solved example",
  "mistakes": ["common mistake"],
  "practice_questions": ["3 to 5 questions"],
  "summary": ["key point"],
  "resources": ["link to a good online resource"]
}`

func notesPrompt(topic string, variables []string) string {
	return fmt.Sprintf("A student scanned an image about the topic %q.\nThe important variables are: %s\nGenerate detailed study notes.",
		topic, strings.Join(variables, ", "))
}

func notesFollowUpPrompt(topic string, previous map[string]any, question string) string {
	prev, _ := json.Marshal(previous)
	return fmt.Sprintf("The topic is %q.\nThe student's current notes: %s\nThe student asks: %q\nUpdate the notes or write a new notes section that answers the question.",
		topic, prev, question)
}

const quizSystemPrompt = `You are an expert AI tutor and examiner. Output ONLY valid JSON, no markdown:
{
  "topic": "...",
  "questions": [
    {
      "question": "Question text",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correct_index": 0,
      "explanation": "Brief explanation",
      "takeaway": "One-line key insight"
    }
  ]
}`

func quizPrompt(topic string, n int) string {
	return fmt.Sprintf("Generate high-quality MCQs for the topic: %s\nCreate EXACTLY %d questions, mixing conceptual and numerical ones.\nEach question has 4 options and one correct answer with correct_index 0-3.",
		topic, n)
}

func adjustPrompt(templateID string, current map[string]float64, instruction string) string {
	params, _ := json.Marshal(current)
	return fmt.Sprintf(`You are an expert physics tutor and simulation controller.
Current simulation: %s
Current parameters: %s
User request: %q

If the user asks to change the simulation, update the relevant parameters. If the user asks a question, answer it.
Output strictly as JSON:
{"updated_parameters": {"velocity": 20}, "ai_response": "I have set the velocity to 20 m/s."}`,
		templateID, params, instruction)
}

const chatSystemPrompt = "You are a visualization assistant. Respond with JSON for control commands, or text for explanations. Never mix both."

func chatPrompt(topic string, params map[string]float64, message string) string {
	p, _ := json.MarshalIndent(params, "", "  ")
	if len(params) == 0 {
		p = []byte("{}")
	}
	return fmt.Sprintf(`You are an intelligent visualization assistant inside an educational app.

First classify the user's intent.
VISUAL_UPDATE: the user asks to change, adjust, increase, decrease, reset or control the visualization.
Return ONLY this JSON, with numeric values and only keys from the current parameters:
{"action": "update", "changes": {"variable_name": 1.0}}
CHAT_EXPLANATION: the user asks why, how, what is, or wants an explanation. Answer in plain language, no JSON.

Current visualization state:
Topic: %s
Parameters: %s

USER MESSAGE:
%s`, topic, p, message)
}

package tutor

import "stemly-gateway/api/internal/schema"

var topicSchema = schema.Schema{
	Name: "topic",
	Fields: []schema.Field{
		{Name: "topic", Aliases: []string{"stem_topic", "subject"}, Type: schema.String, Required: true},
		{Name: "variables", Type: schema.Variables},
	},
}

var notesSchema = schema.Schema{
	Name: "notes",
	Fields: []schema.Field{
		{Name: "explanation", Type: schema.String, Required: true},
		{Name: "variable_breakdown", Type: schema.StringMap},
		{Name: "formulas", Type: schema.StringList},
		{Name: "example", Type: schema.String},
		{Name: "mistakes", Type: schema.StringList},
		{Name: "practice_questions", Type: schema.StringList},
		{Name: "summary", Type: schema.StringList},
		{Name: "resources", Type: schema.StringList},
	},
}

const optionsPerQuestion = 4

var questionSchema = schema.Schema{
	Name: "question",
	Fields: []schema.Field{
		{Name: "question", Type: schema.String, Required: true},
		{Name: "options", Type: schema.StringList, Required: true, MinLen: 2, Len: optionsPerQuestion, PadLabel: "Option"},
		{Name: "correct_index", Aliases: []string{"answer_index", "correct"}, Type: schema.Index, Min: 0, Max: optionsPerQuestion - 1},
		{Name: "explanation", Type: schema.String},
		{Name: "takeaway", Type: schema.String},
	},
}

var quizSchema = schema.Schema{
	Name: "quiz",
	Fields: []schema.Field{
		{Name: "questions", Type: schema.ObjectList, Required: true, Items: &questionSchema},
		{Name: "topic", Type: schema.String},
		{Name: "difficulty", Type: schema.String},
	},
}

var adjustSchema = schema.Schema{
	Name: "adjust",
	Fields: []schema.Field{
		{Name: "updated_parameters", Aliases: []string{"parameters", "changes"}, Type: schema.NumberMap},
		{Name: "ai_response", Aliases: []string{"message", "response"}, Type: schema.String},
	},
}

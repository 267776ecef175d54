package worker

import "github.com/google/jsonschema-go/jsonschema"

func str(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func score(desc string, lo, hi float64) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: desc, Minimum: jsonschema.Ptr(lo), Maximum: jsonschema.Ptr(hi)}
}

func object(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Required: required, Properties: props}
}

func arrayOf(item *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: item, MinItems: jsonschema.Ptr(1)}
}

func vivaQuestionsSchema() *jsonschema.Schema {
	return object([]string{"questions"}, map[string]*jsonschema.Schema{
		"questions": arrayOf(object([]string{"question_text", "question_category"}, map[string]*jsonschema.Schema{
			"question_text":     str("The question to ask the student"),
			"question_category": str("Short category label, e.g. theory"),
		})),
	})
}

func createRubricSchema() *jsonschema.Schema {
	return object([]string{"criteria"}, map[string]*jsonschema.Schema{
		"criteria": arrayOf(object([]string{"name", "description", "max_score"}, map[string]*jsonschema.Schema{
			"name":        str("Criterion name"),
			"description": str("What a strong answer demonstrates"),
			"max_score":   score("Maximum score for the criterion", 0, 100),
		})),
	})
}

func writingQualitySchema() *jsonschema.Schema {
	return object([]string{"overall_score", "feedback"}, map[string]*jsonschema.Schema{
		"overall_score": score("Overall writing quality", 0, 100),
		"feedback":      str("Actionable feedback on the writing"),
		"metrics": object(nil, map[string]*jsonschema.Schema{
			"grammar":   score("Grammar", 0, 100),
			"clarity":   score("Clarity", 0, 100),
			"structure": score("Structure", 0, 100),
		}),
	})
}

func summaryAndReportSchema() *jsonschema.Schema {
	return object([]string{"summary"}, map[string]*jsonschema.Schema{
		"summary": str("One or two paragraph summary"),
		"report": object(nil, map[string]*jsonschema.Schema{
			"strengths":  &jsonschema.Schema{Type: "array", Items: str("A strength")},
			"weaknesses": &jsonschema.Schema{Type: "array", Items: str("A weakness")},
		}),
	})
}

func automatedMarksheetSchema() *jsonschema.Schema {
	return object([]string{"marks"}, map[string]*jsonschema.Schema{
		"marks": arrayOf(object([]string{"criterion", "score", "max_score"}, map[string]*jsonschema.Schema{
			"criterion": str("Criterion name from the rubric"),
			"score":     score("Awarded score", 0, 100),
			"max_score": score("Maximum score for the criterion", 0, 100),
			"comment":   str("Justification for the score"),
		})),
	})
}

func optimizePromptSchema() *jsonschema.Schema {
	return object([]string{"optimized_prompt"}, map[string]*jsonschema.Schema{
		"optimized_prompt": str("The rewritten prompt"),
	})
}

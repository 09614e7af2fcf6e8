package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goforge/internal/skills"
)

// LoadSkillTool returns a named skill's full body wrapped in a <skill>
// tag. Available skills are listed in the system prompt.
type LoadSkillTool struct {
	loader *skills.Loader
}

func NewLoadSkillTool(loader *skills.Loader) *LoadSkillTool {
	return &LoadSkillTool{loader: loader}
}

func (t *LoadSkillTool) Name() string { return "load_skill" }
func (t *LoadSkillTool) Description() string {
	return "Load the full instructions of a named skill from the skill library"
}
func (t *LoadSkillTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "Skill name as listed in the system prompt"},
		},
		"required": []string{"name"},
	}
}

func (t *LoadSkillTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	if name == "" {
		return ErrorResult("name is required")
	}
	content, err := t.loader.Content(name)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(fmt.Sprintf("<skill name=%q>\n%s\n</skill>", name, content))
}

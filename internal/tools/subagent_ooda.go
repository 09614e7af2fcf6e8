package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/trace"
)

// confidenceThreshold is the orient confidence at which further
// observation stops paying for itself.
const confidenceThreshold = 0.75

type orientAssessment struct {
	Situation  string  `json:"situation"`
	Gaps       string  `json:"gaps"`
	Confidence float64 `json:"confidence"`
}

type oodaDecision struct {
	Choice string `json:"choice"` // OBSERVE_MORE, ACT, DONE
	Reason string `json:"reason"`
}

// runOODA drives the observe-orient-decide-act cycle: gather tool
// outputs, assess the situation, choose the next move, act on it.
// Terminates on DONE or the cycle cap, then summarizes the log.
func (sm *SubagentManager) runOODA(ctx context.Context, at AgentType, prompt, spanID string) (string, error) {
	reg := sm.childTools(at)
	runID := sm.currentRunID()

	var observations []string
	var lastAssessment orientAssessment

	for cycle := 1; cycle <= sm.cfg.MaxOODACycles; cycle++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		// Observe: skip when the last orientation was already confident.
		if lastAssessment.Confidence < confidenceThreshold {
			obs, err := sm.oodaToolPhase(ctx, reg, at, prompt, observations,
				"Observe: gather the information you are missing. Call the tools that will fill the gaps.")
			if err != nil {
				return "", fmt.Errorf("ooda observe (cycle %d): %w", cycle, err)
			}
			observations = append(observations, obs...)
		}

		// Orient.
		assessment, err := sm.oodaOrient(ctx, at, prompt, observations)
		if err != nil {
			return "", fmt.Errorf("ooda orient (cycle %d): %w", cycle, err)
		}
		lastAssessment = assessment

		// Decide.
		decision, err := sm.oodaDecide(ctx, at, prompt, observations, assessment)
		if err != nil {
			return "", fmt.Errorf("ooda decide (cycle %d): %w", cycle, err)
		}

		sm.tracer.Emit(trace.EventOODACycle, runID, trace.Fields{
			"span_id":    spanID,
			"cycle":      cycle,
			"confidence": assessment.Confidence,
			"choice":     decision.Choice,
		})

		switch decision.Choice {
		case "DONE":
			return sm.oodaSummarize(ctx, at, prompt, observations)
		case "ACT":
			acts, err := sm.oodaToolPhase(ctx, reg, at, prompt, observations,
				"Act: execute the concrete next steps you decided on. Call the necessary tools.")
			if err != nil {
				return "", fmt.Errorf("ooda act (cycle %d): %w", cycle, err)
			}
			observations = append(observations, acts...)
		default:
			// OBSERVE_MORE or anything unparseable: loop again.
		}
	}

	return sm.oodaSummarize(ctx, at, prompt, observations)
}

// oodaToolPhase asks the LLM for tool calls and executes them in
// parallel, returning one log line per call.
func (sm *SubagentManager) oodaToolPhase(
	ctx context.Context,
	reg *Registry,
	at AgentType,
	prompt string,
	observations []string,
	instruction string,
) ([]string, error) {
	resp, err := sm.provider.Chat(ctx, providers.ChatRequest{
		Model: sm.model,
		Messages: []providers.Message{
			{Role: "system", Content: at.SystemPrompt},
			{Role: "user", Content: oodaContext(prompt, observations) + "\n\n" + instruction},
		},
		Tools:   reg.ProviderDefs(),
		Options: map[string]interface{}{"max_tokens": 4096},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.ToolCalls) == 0 {
		if resp.Content != "" {
			return []string{"note: " + truncate(resp.Content, 500)}, nil
		}
		return nil, nil
	}

	results := make([]string, len(resp.ToolCalls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, tc := range resp.ToolCalls {
		g.Go(func() error {
			r := reg.Execute(gctx, tc.Name, tc.Arguments)
			results[i] = fmt.Sprintf("%s(%s) -> %s", tc.Name, jsonPreview(tc.Arguments, 120), truncate(r.ForLLM, 1000))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (sm *SubagentManager) oodaOrient(ctx context.Context, at AgentType, prompt string, observations []string) (orientAssessment, error) {
	var assessment orientAssessment
	content, err := sm.oodaJSONCall(ctx, at, oodaContext(prompt, observations)+"\n\n"+
		`Orient: assess the situation. Respond with JSON only: {"situation": "...", "gaps": "...", "confidence": 0.0-1.0}.`)
	if err != nil {
		return assessment, err
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &assessment); err != nil {
		// Unparseable orientation counts as zero confidence.
		assessment = orientAssessment{Situation: truncate(content, 200)}
	}
	return assessment, nil
}

func (sm *SubagentManager) oodaDecide(ctx context.Context, at AgentType, prompt string, observations []string, assessment orientAssessment) (oodaDecision, error) {
	var decision oodaDecision
	content, err := sm.oodaJSONCall(ctx, at, fmt.Sprintf(
		"%s\n\nSituation: %s\nGaps: %s\nConfidence: %.2f\n\n"+
			`Decide: respond with JSON only: {"choice": "OBSERVE_MORE" or "ACT" or "DONE", "reason": "..."}.`,
		oodaContext(prompt, observations), assessment.Situation, assessment.Gaps, assessment.Confidence))
	if err != nil {
		return decision, err
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &decision); err != nil {
		decision = oodaDecision{Choice: "OBSERVE_MORE", Reason: "unparseable decision"}
	}
	decision.Choice = strings.ToUpper(strings.TrimSpace(decision.Choice))
	return decision, nil
}

func (sm *SubagentManager) oodaSummarize(ctx context.Context, at AgentType, prompt string, observations []string) (string, error) {
	resp, err := sm.provider.Chat(ctx, providers.ChatRequest{
		Model: sm.model,
		Messages: []providers.Message{
			{Role: "system", Content: at.SystemPrompt},
			{Role: "user", Content: oodaContext(prompt, observations) +
				"\n\nSummarize everything learned and accomplished, answering the original task directly."},
		},
		Options: map[string]interface{}{"max_tokens": 4096},
	})
	if err != nil {
		return "", fmt.Errorf("ooda summarize: %w", err)
	}
	if resp.Content == "" {
		return "OODA budget exhausted before a summary could be produced.", nil
	}
	return resp.Content, nil
}

func (sm *SubagentManager) oodaJSONCall(ctx context.Context, at AgentType, userContent string) (string, error) {
	resp, err := sm.provider.Chat(ctx, providers.ChatRequest{
		Model: sm.model,
		Messages: []providers.Message{
			{Role: "system", Content: at.SystemPrompt},
			{Role: "user", Content: userContent},
		},
		Options: map[string]interface{}{"max_tokens": 1024},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func oodaContext(prompt string, observations []string) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(prompt)
	if len(observations) > 0 {
		b.WriteString("\n\nObservation log:")
		for i, obs := range observations {
			fmt.Fprintf(&b, "\n%d. %s", i+1, obs)
		}
	}
	return b.String()
}

// extractJSON pulls the first {...} block out of content, tolerating
// code fences and prose around it.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/speech-to-contract/internal/contracts/schema"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/openai"
)

// LLMContractAI drives classification, extraction and annotation through a
// chat model. It returns the model output as is; validation happens in the
// generation orchestrator.
type LLMContractAI struct {
	log     *logger.Logger
	client  openai.Client
	catalog *schema.Catalog
}

func NewLLMContractAI(baseLog *logger.Logger, client openai.Client, catalog *schema.Catalog) *LLMContractAI {
	return &LLMContractAI{
		log:     baseLog.With("service", "LLMContractAI"),
		client:  client,
		catalog: catalog,
	}
}

func (a *LLMContractAI) ClassifyType(ctx context.Context, text string) (string, error) {
	labels := append(a.catalog.Labels(), schema.OtherLabel)
	system := "당신은 대화 녹취록을 읽고 민법상 전형계약의 종류를 판별하는 법률 보조자입니다. " +
		`다음 중 하나만 골라 {"contract_type": "..."} 형태의 JSON으로 답하세요: ` + strings.Join(labels, ", ")
	out, err := a.client.GenerateJSON(ctx, system, text)
	if err != nil {
		return "", err
	}
	label, _ := out["contract_type"].(string)
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("classifier returned no contract_type")
	}
	return label, nil
}

func (a *LLMContractAI) ExtractFields(ctx context.Context, text string, label string) (map[string]any, error) {
	cs, ok := a.catalog.Get(label)
	if !ok {
		return nil, fmt.Errorf("no schema for contract type %q", label)
	}
	system := "당신은 대화 녹취록에서 " + label + " 계약서 항목을 추출합니다. " +
		"아래 JSON 구조의 키를 그대로 유지하고 값만 채우세요. 대화에 없는 값은 빈 문자열로 두세요.\n" +
		string(cs.Skeleton()) + "\n\n항목 설명:\n" + cs.Guide()
	return a.client.GenerateJSON(ctx, system, text)
}

func (a *LLMContractAI) Annotate(ctx context.Context, label string, fields map[string]any) (map[string]string, error) {
	cs, ok := a.catalog.Get(label)
	if !ok {
		return nil, fmt.Errorf("no schema for contract type %q", label)
	}
	blank := cs.BlankLeaves(fields)
	if len(blank) == 0 {
		return map[string]string{}, nil
	}
	notes := cs.ReviewNotes()
	var guide strings.Builder
	for _, p := range blank {
		guide.WriteString(p)
		if n := notes[p]; n != "" {
			guide.WriteString(": ")
			guide.WriteString(n)
		}
		guide.WriteByte('\n')
	}
	tree, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	system := "당신은 " + label + " 계약서 초안을 검토하는 법률 보조자입니다. " +
		"비어 있는 항목마다 채워야 하는 이유와 법적 위험을 한두 문장으로 설명하세요. " +
		`{"suggestions": {"<field_path>": "<설명>"}} 형태의 JSON으로 답하세요.` +
		"\n\n비어 있는 항목:\n" + guide.String()
	out, err := a.client.GenerateJSON(ctx, system, string(tree))
	if err != nil {
		return nil, err
	}
	return flattenSuggestions(out), nil
}

// Models answer either {"suggestions": {path: text}}, a list of
// {field_path, suggestion_text} objects, or a bare {path: text} map.
func flattenSuggestions(out map[string]any) map[string]string {
	res := map[string]string{}
	raw, ok := out["suggestions"]
	if !ok {
		raw = out
	}
	switch v := raw.(type) {
	case map[string]any:
		for k, text := range v {
			if s, ok := text.(string); ok {
				res[k] = s
			}
		}
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			path, _ := m["field_path"].(string)
			text, _ := m["suggestion_text"].(string)
			if path != "" {
				res[path] = text
			}
		}
	}
	return res
}

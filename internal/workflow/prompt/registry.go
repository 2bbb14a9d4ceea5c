package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptChunkGenerateV1   PromptID = "chunk_generate_v1"
	PromptChunkPolishV1     PromptID = "chunk_polish_v1"
	PromptChunkRewriteV1    PromptID = "chunk_rewrite_v1"
	PromptChunkRegenerateV1 PromptID = "chunk_regenerate_v1"
	PromptCitationFormatV1  PromptID = "citation_format_v1"
	PromptCitationApplyV1   PromptID = "citation_apply_v1"
	PromptResearchBriefV1   PromptID = "research_brief_v1"
	PromptOptimizeV1        PromptID = "prompt_optimize_v1"
)

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptChunkGenerateV1:
		return "templates/chunk_generate_v1.system.txt", "templates/chunk_generate_v1.user.txt", nil
	case PromptChunkPolishV1:
		return "templates/chunk_polish_v1.system.txt", "templates/chunk_polish_v1.user.txt", nil
	case PromptChunkRewriteV1:
		return "templates/chunk_rewrite_v1.system.txt", "templates/chunk_rewrite_v1.user.txt", nil
	case PromptChunkRegenerateV1:
		return "templates/chunk_regenerate_v1.system.txt", "templates/chunk_regenerate_v1.user.txt", nil
	case PromptCitationFormatV1:
		return "templates/citation_format_v1.system.txt", "templates/citation_format_v1.user.txt", nil
	case PromptCitationApplyV1:
		return "templates/citation_apply_v1.system.txt", "templates/citation_apply_v1.user.txt", nil
	case PromptResearchBriefV1:
		return "templates/research_brief_v1.system.txt", "templates/research_brief_v1.user.txt", nil
	case PromptOptimizeV1:
		return "templates/prompt_optimize_v1.system.txt", "templates/prompt_optimize_v1.user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Package prompt builds LLM completion prompts from conversation history
// in one of three wire formats, grounded on the conversational-prompt
// shape used throughout the pack's Ollama/llama.cpp-style clients.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mjolnir-labs/heisenberg-core/internal/session"
)

// Format selects the wire-level prompt layout.
type Format string

const (
	ChatML Format = "chatml"
	Llama2 Format = "llama2"
	Plain  Format = "plain"
)

// Builder constructs a complete prompt string from history plus the
// current query, in the configured Format.
type Builder struct {
	SystemPrompt string
	Format       Format
}

// New creates a Builder. An unrecognized format falls back to Plain.
func New(systemPrompt string, format Format) *Builder {
	switch format {
	case ChatML, Llama2, Plain:
	default:
		format = Plain
	}
	return &Builder{SystemPrompt: systemPrompt, Format: format}
}

// Build renders history (oldest first) plus currentQuery into a single
// prompt string ready for the completion endpoint.
func (b *Builder) Build(history []session.Turn, currentQuery string) string {
	switch b.Format {
	case ChatML:
		return b.buildChatML(history, currentQuery)
	case Llama2:
		return b.buildLlama2(history, currentQuery)
	default:
		return b.buildPlain(history, currentQuery)
	}
}

func (b *Builder) buildChatML(history []session.Turn, currentQuery string) string {
	var lines []string
	if b.SystemPrompt != "" {
		lines = append(lines, fmt.Sprintf("<|im_start|>system\n%s<|im_end|>", b.SystemPrompt))
	}
	for _, t := range history {
		lines = append(lines, fmt.Sprintf("<|im_start|>user\n%s<|im_end|>", t.UserQuery))
		lines = append(lines, fmt.Sprintf("<|im_start|>assistant\n%s<|im_end|>", t.AssistantResponse))
	}
	lines = append(lines, fmt.Sprintf("<|im_start|>user\n%s<|im_end|>", currentQuery))
	lines = append(lines, "<|im_start|>assistant\n")
	return strings.Join(lines, "\n")
}

func (b *Builder) buildLlama2(history []session.Turn, currentQuery string) string {
	var sb strings.Builder
	if b.SystemPrompt != "" {
		fmt.Fprintf(&sb, "[INST] <<SYS>>\n%s\n<</SYS>>\n\n", b.SystemPrompt)
	} else {
		sb.WriteString("[INST] ")
	}

	first := true
	for _, t := range history {
		if !first {
			sb.WriteString("[INST] ")
		}
		fmt.Fprintf(&sb, "%s [/INST]", t.UserQuery)
		fmt.Fprintf(&sb, " %s </s><s>", t.AssistantResponse)
		first = false
	}
	if !first {
		sb.WriteString("[INST] ")
	}
	fmt.Fprintf(&sb, "%s [/INST]", currentQuery)
	return sb.String()
}

func (b *Builder) buildPlain(history []session.Turn, currentQuery string) string {
	var lines []string
	if b.SystemPrompt != "" {
		lines = append(lines, "System: "+b.SystemPrompt)
	}
	for _, t := range history {
		lines = append(lines, "User: "+t.UserQuery)
		lines = append(lines, "Assistant: "+t.AssistantResponse)
	}
	lines = append(lines, "User: "+currentQuery)
	lines = append(lines, "Assistant:")
	return strings.Join(lines, "\n\n")
}

// Personas holds named system-prompt presets, translated from the
// original implementation's named personality set. Selecting by name is
// an alternative to supplying SystemPrompt verbatim in the config
// bundle.
var Personas = map[string]string{
	"default": "You are a helpful, intelligent voice assistant. Answer concisely and naturally.",

	"concise": "You are a voice assistant. Answer in 1-2 sentences maximum. Be direct and precise.",

	"friendly": "You are a warm, friendly voice assistant. Use a relaxed tone and enjoy helping out. Answer naturally and conversationally.",

	"professional": "You are a professional assistant. Answer clearly, in a structured and courteous manner. Provide accurate information.",

	"technical": "You are a specialized technical assistant. Provide detailed answers with technical explanations when appropriate. Use precise vocabulary.",
}

// ResolvePersona returns the named persona's system prompt, or raw
// unchanged if it does not match a known persona name.
func ResolvePersona(raw string) string {
	if p, ok := Personas[raw]; ok {
		return p
	}
	return raw
}

package prompt

import "strings"

// LastUserMessage extracts the final user turn from a prompt string
// built by Build, per format. It exists to make the round-trip law
// (build([], q) -> parse -> q) testable without a real tokenizer.
func (b *Builder) LastUserMessage(built string) string {
	switch b.Format {
	case ChatML:
		return lastBetween(built, "<|im_start|>user\n", "<|im_end|>")
	case Llama2:
		msg := lastBetween(built, "[INST] ", " [/INST]")
		// With no history, the system block shares the only [INST] turn.
		if strings.HasPrefix(msg, "<<SYS>>") {
			if i := strings.Index(msg, "<</SYS>>"); i != -1 {
				msg = strings.TrimSpace(msg[i+len("<</SYS>>"):])
			}
		}
		return msg
	default:
		return lastPlainUser(built)
	}
}

func lastBetween(s, start, end string) string {
	idx := strings.LastIndex(s, start)
	if idx == -1 {
		return ""
	}
	rest := s[idx+len(start):]
	endIdx := strings.Index(rest, end)
	if endIdx == -1 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:endIdx])
}

func lastPlainUser(s string) string {
	blocks := strings.Split(s, "\n\n")
	for i := len(blocks) - 1; i >= 0; i-- {
		if strings.HasPrefix(blocks[i], "User: ") {
			return strings.TrimPrefix(blocks[i], "User: ")
		}
	}
	return ""
}

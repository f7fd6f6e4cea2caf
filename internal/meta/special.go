package meta

// Keys whose content must always be fully retrievable, independent of
// size thresholds. Downstream viewers (chat-template viewer, token
// browser, merge browser) read the full value of these entries and must
// never see them truncated.
const (
	KeyChatTemplate = "tokenizer.chat_template"
	KeyTokens       = "tokenizer.ggml.tokens"
	KeyMerges       = "tokenizer.ggml.merges"
)

// SpecialDisplayMarker is the fixed inline text shown for special keys.
const SpecialDisplayMarker = "available — view for full content"

var specialKeys = map[string]struct{}{
	KeyChatTemplate: {},
	KeyTokens:       {},
	KeyMerges:       {},
}

// IsSpecialKey reports whether key requires exhaustive content.
func IsSpecialKey(key string) bool {
	_, ok := specialKeys[key]
	return ok
}

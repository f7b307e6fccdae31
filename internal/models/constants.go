package models

const (
	// ContextSeparator joins retrieved chunks into the context block.
	ContextSeparator = "\n\n"

	// DefaultChatModel is the Groq-hosted model used for answers.
	DefaultChatModel = "llama-3.3-70b-versatile"

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024

	SystemPrompt = "You are an Insurance Agency Customer Care assistant. " +
		"Use only the provided context to answer. " +
		"If not found, say you don't have it and offer human support."
)

var (
	UserPromptTemplate = `Context:
%s

Question:
%s`
)

package ai

// AnswerPrompt is the system prompt for answering questions over retrieved
// document context.
const AnswerPrompt = `You are a document analyst. Answer questions based on the provided context.
Be precise. Quote relevant passages when answering.
Use the conversation history for context about previous questions.`

package services

import (
	"fmt"
	"strings"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// ImageAnalysisInstruction is sent with every attached image
const ImageAnalysisInstruction = "Describe this image in detail, focusing on anything relevant to a small business: " +
	"products, quantities, prices, receipts, invoices, sales or debts. Mention any text or numbers you can read."

// NoContextInstruction replaces the data block when retrieval finds nothing
const NoContextInstruction = "No relevant data was found in the user's records for this question. " +
	"Tell the user that their records do not contain the information needed, and do not invent figures."

const noHistory = "(no previous messages)"

// PromptInput is everything a grounded prompt is assembled from
type PromptInput struct {
	Currency      string
	History       []domain.Message
	Context       []domain.ScoredDocument
	Message       string
	ImageAnalysis string
}

// ContextBlock joins retrieved document contents, blank-line separated
func ContextBlock(hits []domain.ScoredDocument) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Document.Content)
	}
	return strings.Join(parts, "\n\n")
}

// RetrievalQuery is the message, followed by the image analysis if any.
// Either part alone is used as is.
func RetrievalQuery(message, imageAnalysis string) string {
	switch {
	case imageAnalysis == "":
		return message
	case strings.TrimSpace(message) == "":
		return imageAnalysis
	}
	return message + "\n" + imageAnalysis
}

// BuildPrompt assembles the single prompt sent for text generation
func BuildPrompt(in PromptInput) string {
	currency := in.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	history := domain.FormatHistory(in.History)
	if history == "" {
		history = noHistory
	}

	data := ContextBlock(in.Context)
	if data == "" {
		data = NoContextInstruction
	}

	var sb strings.Builder
	sb.WriteString("You are a financial assistant for a small business owner. ")
	sb.WriteString("You answer questions about their products, sales and debts using only the business data provided below.\n")
	fmt.Fprintf(&sb, "Express all monetary amounts in %s.\n", currency)
	sb.WriteString("Cite the specific records (names, quantities, values and dates) that support your answer.\n")
	sb.WriteString("If the data is insufficient to answer, say so explicitly instead of guessing.\n\n")

	sb.WriteString("Conversation history:\n")
	sb.WriteString(history)
	sb.WriteString("\n\n")

	sb.WriteString("Business data:\n")
	sb.WriteString(data)
	sb.WriteString("\n\n")

	sb.WriteString("User message:\n")
	sb.WriteString(in.Message)
	sb.WriteString("\n\n")

	if in.ImageAnalysis != "" {
		sb.WriteString("Attached image analysis:\n")
		sb.WriteString(in.ImageAnalysis)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Answer:")
	return sb.String()
}

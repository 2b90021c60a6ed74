package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"

	"github.com/ledgerwise/ledgerwise-core/internal/adapters/driven/memory"
	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven/mocks"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driving"
	"github.com/ledgerwise/ledgerwise-core/internal/runtime"
)

// assistantWorld is the per-scenario state of the feature suite
type assistantWorld struct {
	userID   string
	currency string

	records       *mocks.MockRecordSource
	embedder      *mocks.MockEmbeddingService
	llm           *mocks.MockLLMService
	conversations *memory.ConversationStore
	index         *IndexManager
	chat          driving.ChatService

	lastResponse   *domain.ChatResponse
	conversationID string
}

func (w *assistantWorld) reset() {
	w.records = mocks.NewMockRecordSource()
	w.embedder = mocks.NewMockEmbeddingService()
	w.llm = mocks.NewMockLLMService()
	w.llm.SetReply("reply")

	services := runtime.NewServices(domain.NewRuntimeConfig("memory"))
	services.SetEmbeddingService(w.embedder)
	services.SetLLMService(w.llm)

	w.index = NewIndexManager(w.records, services, newTestDocumentBuilder(), IndexConfig{})
	w.conversations = memory.NewConversationStore(memory.ConversationStoreConfig{})
	w.chat = NewChatService(w.index, w.conversations, services, ChatConfig{})
	w.lastResponse = nil
	w.conversationID = ""
}

func (w *assistantWorld) aUserWithCurrency(userID, currency string) error {
	w.userID, w.currency = userID, currency
	w.records.SetRecords(&domain.UserRecordSet{UserID: userID, Currency: currency})
	return nil
}

func (w *assistantWorld) theUserHasAProduct(id, name string, qty int, value float64) error {
	w.records.AddProduct(w.userID, domain.Product{
		ID:               id,
		UserID:           w.userID,
		Name:             name,
		Quantity:         qty,
		AcquisitionValue: value,
		Status:           domain.ProductStatusActive,
	})
	return nil
}

func (w *assistantWorld) theVisionModelDescribes(analysis string) error {
	w.llm.SetImageAnalysis(analysis)
	return nil
}

func (w *assistantWorld) ask(ctx context.Context, req domain.ChatRequest) error {
	req.Currency = w.currency
	resp, err := w.chat.HandleTurn(ctx, w.userID, req)
	if err != nil {
		return err
	}
	w.lastResponse = resp
	w.conversationID = resp.ConversationID
	return nil
}

func (w *assistantWorld) theUserAsks(ctx context.Context, message string) error {
	return w.ask(ctx, domain.ChatRequest{Message: message})
}

func (w *assistantWorld) theUserAsksInSameConversation(ctx context.Context, message string) error {
	return w.ask(ctx, domain.ChatRequest{Message: message, ConversationID: w.conversationID})
}

func (w *assistantWorld) theUserAsksWithImage(ctx context.Context, message string) error {
	return w.ask(ctx, domain.ChatRequest{Message: message, ImageBase64: "aGVsbG8="})
}

func (w *assistantWorld) theIndexIsBuilt(ctx context.Context) error {
	_, err := w.index.Warm(ctx, w.userID)
	return err
}

func (w *assistantWorld) productIsDeletedAndRefreshed(ctx context.Context, id string) error {
	set, err := w.records.FetchUserRecords(ctx, w.userID, 0)
	if err != nil {
		return err
	}
	kept := set.Products[:0:0]
	for _, p := range set.Products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	set.Products = kept
	w.records.SetRecords(set)
	return w.index.Refresh(ctx, w.userID)
}

func (w *assistantWorld) concurrentBuilds(ctx context.Context, n int) error {
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.index.GetOrBuild(ctx, w.userID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	return <-errs
}

func (w *assistantWorld) retrievalReturnsDocumentMentioning(ctx context.Context, query, a, b string) error {
	hits, err := w.index.Retrieve(ctx, w.userID, query, 8)
	if err != nil {
		return err
	}
	for _, h := range hits {
		if strings.Contains(h.Document.Content, a) && strings.Contains(h.Document.Content, b) {
			return nil
		}
	}
	return fmt.Errorf("no retrieved document mentions %q and %q", a, b)
}

func (w *assistantWorld) noDocumentReferences(ctx context.Context, recordID string) error {
	hits, err := w.index.Retrieve(ctx, w.userID, "blue mug red shirt product", 8)
	if err != nil {
		return err
	}
	for _, h := range hits {
		if h.Document.Metadata.RecordID == recordID || strings.Contains(h.Document.Content, recordID) {
			return fmt.Errorf("document %s still references %s", h.Document.ID, recordID)
		}
	}
	return nil
}

func (w *assistantWorld) thePromptContains(text string) error {
	if prompt := w.llm.LastPrompt(); !strings.Contains(prompt, text) {
		return fmt.Errorf("prompt does not contain %q:\n%s", text, prompt)
	}
	return nil
}

func (w *assistantWorld) theSourcesAre(list string) error {
	if w.lastResponse == nil {
		return fmt.Errorf("no response recorded")
	}
	if got := strings.Join(w.lastResponse.Sources, ", "); got != list {
		return fmt.Errorf("expected sources %q, got %q", list, got)
	}
	return nil
}

func (w *assistantWorld) theLastRetrievalQueryWas(query string) error {
	query = strings.ReplaceAll(query, `\n`, "\n")
	queries := w.embedder.Queries()
	if len(queries) == 0 {
		return fmt.Errorf("no retrieval query was embedded")
	}
	if got := queries[len(queries)-1]; got != query {
		return fmt.Errorf("expected query %q, got %q", query, got)
	}
	return nil
}

func (w *assistantWorld) theStoredUserMessageHasImageAnalysis(ctx context.Context, analysis string) error {
	conv, err := w.conversations.Get(ctx, w.conversationID)
	if err != nil {
		return err
	}
	if len(conv.Messages) == 0 || conv.Messages[0].ImageAnalysis != analysis {
		return fmt.Errorf("expected first message image analysis %q, got %+v", analysis, conv.Messages)
	}
	return nil
}

func (w *assistantWorld) recordsFetched(n int) error {
	if got := w.records.Fetches(w.userID); got != n {
		return fmt.Errorf("expected %d fetches, got %d", n, got)
	}
	return nil
}

func (w *assistantWorld) embeddingBatches(n int) error {
	if got := w.embedder.EmbedCalls(); got != n {
		return fmt.Errorf("expected %d embed calls, got %d", n, got)
	}
	return nil
}

func (w *assistantWorld) conversationMessagesAre(ctx context.Context, list string) error {
	conv, err := w.conversations.Get(ctx, w.conversationID)
	if err != nil {
		return err
	}
	contents := make([]string, len(conv.Messages))
	for i, m := range conv.Messages {
		contents[i] = m.Content
	}
	if got := strings.Join(contents, ", "); got != list {
		return fmt.Errorf("expected messages %q, got %q", list, got)
	}
	return nil
}

func initializeAssistantScenario(sc *godog.ScenarioContext) {
	w := &assistantWorld{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.reset()
		return ctx, nil
	})

	sc.Step(`^a user "([^"]*)" with currency "([^"]*)"$`, w.aUserWithCurrency)
	sc.Step(`^the user has a product "([^"]*)" named "([^"]*)" with quantity (\d+) and acquisition value (\d+(?:\.\d+)?)$`, w.theUserHasAProduct)
	sc.Step(`^the vision model describes images as "([^"]*)"$`, w.theVisionModelDescribes)
	sc.Step(`^the index for the user is built$`, w.theIndexIsBuilt)
	sc.Step(`^the user asks "([^"]*)"$`, w.theUserAsks)
	sc.Step(`^the user asks "([^"]*)" in the same conversation$`, w.theUserAsksInSameConversation)
	sc.Step(`^the user asks "([^"]*)" with an image attached$`, w.theUserAsksWithImage)
	sc.Step(`^product "([^"]*)" is deleted and the index is refreshed$`, w.productIsDeletedAndRefreshed)
	sc.Step(`^(\d+) requests build the user's index at the same time$`, w.concurrentBuilds)
	sc.Step(`^retrieval for "([^"]*)" returns a document mentioning "([^"]*)" and "([^"]*)"$`, w.retrievalReturnsDocumentMentioning)
	sc.Step(`^no retrieved document references "([^"]*)"$`, w.noDocumentReferences)
	sc.Step(`^the generation prompt contains "([^"]*)"$`, w.thePromptContains)
	sc.Step(`^the response sources are "([^"]*)"$`, w.theSourcesAre)
	sc.Step(`^the last retrieval query was "([^"]*)"$`, w.theLastRetrievalQueryWas)
	sc.Step(`^the stored user message has image analysis "([^"]*)"$`, w.theStoredUserMessageHasImageAnalysis)
	sc.Step(`^the records were fetched (\d+) times?$`, w.recordsFetched)
	sc.Step(`^the embedding service received (\d+) batch(?:es)?$`, w.embeddingBatches)
	sc.Step(`^the conversation messages are "([^"]*)"$`, w.conversationMessagesAre)
}

func TestAssistantFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "assistant",
		ScenarioInitializer: initializeAssistantScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("assistant feature scenarios failed")
	}
}

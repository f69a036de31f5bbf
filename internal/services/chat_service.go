package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
)

const chatHistoryTTL = 24 * time.Hour
const chatHistoryMax = 40

// assistantPersona frames the model as the storefront's support agent.
// Account facts are appended per request.
const assistantPersona = `You are Gem, the support assistant for the GemStore diamond top-up shop.

You help customers with:
- Choosing diamond packs, level packs, memberships and premium app offers
- Understanding how deposits work: the customer pays through a listed
  payment channel and an operator approves the deposit, which can take
  up to a few hours
- Rewarded ads: watching an ad credits a small diamond reward, limited
  per day
- Order status: pending orders are fulfilled manually; failed orders are
  refunded in full

Rules:
- Answer in the customer's language.
- Be brief and friendly. No markdown tables.
- Never invent balances, prices or order states. Use only the account
  facts provided below. If you do not know, say so and point the
  customer to the contact channels.
- Never promise refunds or free diamonds. Operators handle disputes.`

const chatFallbackReply = "Sorry, I can't answer right now. Please try again in a moment or reach us through the contact page."

// ChatService answers customer questions with a hosted language model.
// Without an API key it degrades to canned responses, which keeps
// local development working offline.
type ChatService struct {
	client   *genai.Client
	generate generateFunc // nil without an API key
	db       *sql.DB
	redis    *redis.Client
	cfg      configProvider
	helper   *ValidationHelper
}

type generateFunc func(ctx context.Context, userID, message string, history []chatTurn) (string, error)

// ChatRequest represents a chat message payload
// @Description Chat message structure
type ChatRequest struct {
	Message string `json:"message" validate:"required,min=1,max=2000"`
}

// ChatResponse represents the assistant's reply
type ChatResponse struct {
	Reply string `json:"reply"`
}

type chatTurn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

func NewChatService(ctx context.Context, db *sql.DB, redisClient *redis.Client, cfg configProvider) (*ChatService, error) {
	s := &ChatService{
		db:     db,
		redis:  redisClient,
		cfg:    cfg,
		helper: NewValidationHelper(),
	}

	apiKey := viper.GetString("gemini.api_key")
	if apiKey == "" {
		log.Printf("[CHAT] No API key configured, using mock responses")
		return s, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}

	s.client = client
	s.generate = s.generateReply
	log.Printf("[CHAT] Chat assistant initialized")
	return s, nil
}

// Send handles a chat message and returns the assistant's reply
// @Summary Send chat message
// @Description Send a message to the support assistant
// @Tags chat
// @Accept json
// @Produce json
// @Param request body ChatRequest true "Message"
// @Success 200 {object} ChatResponse "Assistant reply"
// @Failure 400 {string} string "Invalid request"
// @Failure 403 {string} string "Chat disabled"
// @Router /chat [post]
func (s *ChatService) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	cfg, err := s.cfg.Current(r.Context())
	if err == nil && !cfg.ChatEnabled {
		SendErrorResponse(w, "Chat is disabled", http.StatusForbidden, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ChatRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.helper.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	reply := s.answer(r.Context(), userID, strings.TrimSpace(req.Message))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ChatResponse{Reply: reply})
}

// Reset clears the user's conversation history
// @Summary Reset chat
// @Description Clear the assistant's conversation history
// @Tags chat
// @Produce json
// @Success 200 {object} map[string]string "History cleared"
// @Router /chat/reset [post]
func (s *ChatService) Reset(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if s.redis != nil {
		s.redis.Del(r.Context(), s.historyKey(userID))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Conversation cleared"})
}

func (s *ChatService) answer(ctx context.Context, userID, message string) string {
	history := s.loadHistory(ctx, userID)

	var reply string
	if s.generate == nil {
		reply = s.mockReply(message)
	} else {
		generated, err := s.generate(ctx, userID, message, history)
		if err != nil {
			// A provider outage must not surface as a 5xx to the shopper
			log.Printf("[CHAT] Generation failed for user %s: %v", userID, err)
			return chatFallbackReply
		}
		reply = generated
	}

	s.appendHistory(ctx, userID, chatTurn{Role: "user", Text: message}, chatTurn{Role: "model", Text: reply})
	return reply
}

func (s *ChatService) generateReply(ctx context.Context, userID, message string, history []chatTurn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	model := s.client.GenerativeModel(viper.GetString("gemini.model"))
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(assistantPersona + "\n\n" + s.accountFacts(ctx, userID))},
	}

	cs := model.StartChat()
	for _, turn := range history {
		cs.History = append(cs.History, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", fmt.Errorf("empty response")
	}
	return reply, nil
}

// accountFacts gathers the grounding facts the persona is allowed to
// state about the calling customer.
func (s *ChatService) accountFacts(ctx context.Context, userID string) string {
	var displayName, accountID string
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT u.display_name, u.account_id, a.balance
		FROM users u JOIN accounts a ON u.account_id = a.account_id
		WHERE u.id = $1::integer`, userID).Scan(&displayName, &accountID, &balance)
	if err != nil {
		return "Account facts: unavailable."
	}

	return fmt.Sprintf("Account facts:\n- Customer name: %s\n- Account ID: %s\n- Current balance: %d diamonds", displayName, accountID, balance)
}

func (s *ChatService) mockReply(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "deposit"):
		return "To top up, pick a payment channel on the deposit page, pay the shown address and submit the deposit. An operator approves it, usually within a few hours."
	case strings.Contains(lower, "order"):
		return "You can follow your orders on the orders page. Pending orders are fulfilled manually; if an order fails, its price is refunded in full."
	case strings.Contains(lower, "ad"):
		return "Watching a rewarded ad credits a small diamond reward. There is a daily limit, which resets at midnight."
	default:
		return "Hi! I can help with diamond packs, deposits, rewarded ads and order status. What would you like to know?"
	}
}

func (s *ChatService) historyKey(userID string) string {
	return fmt.Sprintf("chat_history:%s", userID)
}

func (s *ChatService) loadHistory(ctx context.Context, userID string) []chatTurn {
	if s.redis == nil {
		return nil
	}

	raw, err := s.redis.LRange(ctx, s.historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil
	}

	turns := make([]chatTurn, 0, len(raw))
	for _, item := range raw {
		var turn chatTurn
		if err := json.Unmarshal([]byte(item), &turn); err == nil {
			turns = append(turns, turn)
		}
	}
	return turns
}

func (s *ChatService) appendHistory(ctx context.Context, userID string, turns ...chatTurn) {
	if s.redis == nil {
		return
	}

	key := s.historyKey(userID)
	pipe := s.redis.Pipeline()
	for _, turn := range turns {
		if blob, err := json.Marshal(turn); err == nil {
			pipe.RPush(ctx, key, blob)
		}
	}
	pipe.LTrim(ctx, key, -chatHistoryMax, -1)
	pipe.Expire(ctx, key, chatHistoryTTL)
	pipe.Exec(ctx)
}

// Close releases the model client.
func (s *ChatService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/domain"
	"github.com/aaelfe/me-machine/internal/llm"
	"github.com/aaelfe/me-machine/internal/store"
	"github.com/aaelfe/me-machine/internal/wire"
)

// CompletionMode selects how the completion service is driven. The
// persistence and error-handling steps are the same in both modes.
type CompletionMode int

const (
	// CompletionSync makes one call and emits only the terminal envelope.
	CompletionSync CompletionMode = iota
	// CompletionStreaming forwards each fragment as a chunk envelope.
	CompletionStreaming
)

// Emitter receives outbound envelopes during a turn. A nil Emitter is
// valid and drops them (used by the non-streaming HTTP path, which reads
// the Result instead).
type Emitter interface {
	Emit(env *wire.Envelope) error
}

// Turn is one inbound chat request. A nil ConversationID means a new
// conversation must be created for the user.
type Turn struct {
	UserID         string
	Message        string
	ConversationID *int64
	ContextType    domain.ContextType
}

// Result is the outcome of a completed turn.
type Result struct {
	ConversationID int64    `json:"conversation_id"`
	Reply          string   `json:"message"`
	Suggestions    []string `json:"suggestions"`
}

// Orchestrator drives one turn at a time: resolve the conversation,
// assemble model input from prior turns and recent check-ins, persist the
// user utterance, run the completion, persist the reply, emit envelopes.
type Orchestrator struct {
	store         store.Store
	completer     llm.Completer
	log           *zap.Logger
	turnTimeout   time.Duration
	checkInWindow int
}

// New creates an orchestrator. turnTimeout bounds one turn end to end
// (zero disables the bound); checkInWindow caps the recent check-ins
// loaded for prompt personalization.
func New(st store.Store, completer llm.Completer, log *zap.Logger, turnTimeout time.Duration, checkInWindow int) *Orchestrator {
	if checkInWindow <= 0 {
		checkInWindow = 7
	}
	return &Orchestrator{
		store:         st,
		completer:     completer,
		log:           log,
		turnTimeout:   turnTimeout,
		checkInWindow: checkInWindow,
	}
}

// Run processes one turn. On error, nothing before the user-message write
// has mutated anything; after it, the saved user message stays intact and
// only the reply side is abandoned.
func (o *Orchestrator) Run(ctx context.Context, turn Turn, mode CompletionMode, emit Emitter) (*Result, error) {
	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	contextType := turn.ContextType
	if contextType == "" {
		contextType = domain.ContextCheckIn
	}

	// Conversation resolution: a caller-supplied id must belong to the
	// authenticated user before anything is written.
	var conversationID int64
	if turn.ConversationID == nil {
		conv, err := o.store.CreateConversation(ctx, turn.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		conversationID = conv.ID
	} else {
		conv, err := o.store.GetConversation(ctx, *turn.ConversationID, turn.UserID)
		if err != nil {
			return nil, fmt.Errorf("conversation lookup: %w", err)
		}
		conversationID = conv.ID
	}

	messages, err := o.assembleInput(ctx, turn.UserID, conversationID, contextType, turn.Message)
	if err != nil {
		return nil, err
	}

	// Persist the utterance before invoking the model so a failed turn
	// never loses the user's input, only the reply.
	userMessage := []domain.NewMessage{{Role: domain.RoleUser, Content: turn.Message}}
	if err := o.store.AppendMessages(ctx, conversationID, userMessage); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	fullText, nextSeq, err := o.complete(ctx, conversationID, messages, mode, emit)
	if err != nil {
		return nil, err
	}

	aiMessage := []domain.NewMessage{{Role: domain.RoleAI, Content: fullText}}
	if err := o.store.AppendMessages(ctx, conversationID, aiMessage); err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}

	suggestions := SuggestionsFor(contextType)
	if emit != nil {
		if err := emit.Emit(wire.NewComplete(conversationID, nextSeq, fullText, suggestions)); err != nil {
			return nil, fmt.Errorf("failed to emit complete: %w", err)
		}
	}

	return &Result{ConversationID: conversationID, Reply: fullText, Suggestions: suggestions}, nil
}

// assembleInput rebuilds the dialogue oldest-first and prepends the
// personalized system instruction.
func (o *Orchestrator) assembleInput(ctx context.Context, userID string, conversationID int64, contextType domain.ContextType, utterance string) ([]llm.Message, error) {
	history, err := o.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// Check-ins only personalize the prompt; a failed lookup degrades to
	// an unpersonalized instruction rather than aborting the turn.
	checkIns, err := o.store.ListCheckIns(ctx, userID, o.checkInWindow)
	if err != nil {
		o.log.Warn("failed to load check-ins", zap.String("user_id", userID), zap.Error(err))
		checkIns = nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: BuildSystemPrompt(contextType, checkIns)})
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == domain.RoleAI {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})
	return messages, nil
}

// complete drives the completion service and returns the full reply text
// plus the sequence number the terminal envelope should carry.
func (o *Orchestrator) complete(ctx context.Context, conversationID int64, messages []llm.Message, mode CompletionMode, emit Emitter) (string, uint64, error) {
	if mode == CompletionSync {
		text, err := o.completer.Complete(ctx, messages)
		if err != nil {
			return "", 0, fmt.Errorf("completion failed: %w", err)
		}
		return text, 1, nil
	}

	var full strings.Builder
	var seq uint64
	err := o.completer.CompleteStream(ctx, messages, func(fragment string) error {
		if fragment == "" {
			return nil
		}
		full.WriteString(fragment)
		seq++
		if emit != nil {
			// One inbound fragment means one outbound envelope; fragments
			// are never buffered or merged.
			return emit.Emit(wire.NewChunk(conversationID, seq, fragment))
		}
		return nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("completion stream failed: %w", err)
	}
	return full.String(), seq + 1, nil
}

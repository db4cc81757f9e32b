package generate

import (
	"fmt"

	"github.com/fastdesk/fastdesk/internal/prompt"
	"github.com/fastdesk/fastdesk/internal/store"
)

// TicketReader is the slice of the data store needed to assemble a
// generation context. *store.Store satisfies it.
type TicketReader interface {
	GetTicket(id string) (store.Ticket, error)
	TicketMessagesByTicket(ticketID string) ([]store.TicketMessage, error)
}

// ContextForTicket loads a ticket and its message history and builds
// the generation context for a drafting call. The context is built
// fresh per call and never cached.
func ContextForTicket(repo TicketReader, ticketID, responderName string) (prompt.GenerationContext, error) {
	ticket, err := repo.GetTicket(ticketID)
	if err != nil {
		return prompt.GenerationContext{}, fmt.Errorf("loading ticket %s: %w", ticketID, err)
	}

	msgs, err := repo.TicketMessagesByTicket(ticketID)
	if err != nil {
		return prompt.GenerationContext{}, fmt.Errorf("loading messages for ticket %s: %w", ticketID, err)
	}

	history := make([]prompt.ConversationMessage, len(msgs))
	for i, m := range msgs {
		history[i] = prompt.ConversationMessage{
			Content:           m.Body,
			Role:              m.Role,
			SenderDisplayName: m.SenderName,
		}
	}

	return prompt.GenerationContext{
		TicketTitle:           ticket.Title,
		OriginalRequesterName: ticket.RequesterName,
		CurrentResponderName:  responderName,
		TicketBody:            ticket.Body,
		History:               history,
	}, nil
}

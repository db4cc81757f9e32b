package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fastdesk/fastdesk/internal/attachment"
	"github.com/fastdesk/fastdesk/internal/richtext"
	"github.com/fastdesk/fastdesk/internal/store"
)

// Repository is the slice of the data store the gather stage reads.
// *store.Store satisfies it.
type Repository interface {
	ProfileByID(id string) (store.Profile, error)
	NotesByUser(userID, orgID string) (store.UserNotes, error)
	TicketsByRequester(userID string) ([]store.Ticket, error)
	TicketMessagesByTicket(ticketID string) ([]store.TicketMessage, error)
}

// gatheredContext is everything the generate stage needs about the
// target user's current state.
type gatheredContext struct {
	Profile        store.Profile
	ExistingNotes  string
	ExistingTags   []string
	NotesVersion   int
	TicketMessages string
}

// gather fetches the user's profile, existing notes/tags, and the
// transcript of all their ticket messages. The profile and notes reads
// are load-bearing; the ticket transcript is best-effort and collapses
// to empty on failure so the chain can still proceed.
func (c *Chain) gather(ctx context.Context, userID, orgID string) (gatheredContext, error) {
	var gc gatheredContext

	profile, err := c.repo.ProfileByID(userID)
	if err != nil {
		return gc, fmt.Errorf("fetching profile for %s: %w", userID, err)
	}
	gc.Profile = profile

	existing, err := c.repo.NotesByUser(userID, orgID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// No notes yet: empty defaults, version 0.
	case err != nil:
		return gc, fmt.Errorf("fetching notes for %s: %w", userID, err)
	default:
		gc.ExistingNotes = existing.Notes
		gc.ExistingTags = store.DecodeTags(existing.Tags)
		gc.NotesVersion = existing.Version
	}

	transcript, err := c.ticketTranscript(ctx, userID)
	if err != nil {
		slog.Warn("notes gather: ticket transcript unavailable, proceeding without it",
			"user_id", userID, "error", err)
		transcript = ""
	}
	gc.TicketMessages = transcript

	return gc, nil
}

// ticketTranscript concatenates all of the user's ticket messages
// across all their tickets, one `[Role - Name] text` line per message.
// Per-ticket fetches run concurrently; output order follows ticket
// creation time as returned by TicketsByRequester.
func (c *Chain) ticketTranscript(ctx context.Context, userID string) (string, error) {
	tickets, err := c.repo.TicketsByRequester(userID)
	if err != nil {
		return "", fmt.Errorf("listing tickets: %w", err)
	}
	if len(tickets) == 0 {
		return "", nil
	}

	perTicket := make([]string, len(tickets))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, t := range tickets {
		g.Go(func() error {
			msgs, err := c.repo.TicketMessagesByTicket(t.ID)
			if err != nil {
				return fmt.Errorf("messages for ticket %s: %w", t.ID, err)
			}
			perTicket[i] = c.formatMessages(msgs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var nonEmpty []string
	for _, block := range perTicket {
		if block != "" {
			nonEmpty = append(nonEmpty, block)
		}
	}
	return strings.Join(nonEmpty, "\n"), nil
}

func (c *Chain) formatMessages(msgs []store.TicketMessage) string {
	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "[%s - %s] %s\n", m.Role, m.SenderName, richtext.ToPlainText(m.Body))
		if m.AttachmentPath != "" {
			text, err := c.extractText(m.AttachmentPath)
			if err != nil {
				slog.Warn("notes gather: attachment text extraction failed",
					"path", m.AttachmentPath, "error", err)
				continue
			}
			if text != "" {
				fmt.Fprintf(&sb, "[attachment - %s] %s\n", m.SenderName, text)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// defaultExtractText is the production attachment extractor.
func defaultExtractText(path string) (string, error) {
	return attachment.ExtractText(path)
}

package memstore

import (
	"context"
	"sort"
	"time"

	"supportrelay/internal/common"
)

type conversationStore struct {
	db *DB
}

var _ common.ConversationStore = (*conversationStore)(nil)

func (s *conversationStore) Ensure(ctx context.Context, conversationID, userID string, now time.Time) (bool, error) {
	if err := common.ValidateConversationID(conversationID); err != nil {
		return false, err
	}
	if userID == "" {
		userID = common.AnonymousUser
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.conversations[conversationID]; ok {
		return false, nil
	}
	s.db.conversations[conversationID] = &common.Conversation{
		ID:        conversationID,
		UserID:    userID,
		Priority:  common.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil
}

func (s *conversationStore) Get(ctx context.Context, conversationID string) (*common.Conversation, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	conv, ok := s.db.conversations[conversationID]
	if !ok {
		return nil, common.NewNotFoundError("conversation", conversationID)
	}
	return copyConversation(conv), nil
}

func (s *conversationStore) SetPriority(ctx context.Context, conversationID string, priority common.Priority) error {
	if !priority.IsValid() {
		return common.NewValidationError("Invalid priority level.")
	}
	return s.update(conversationID, func(c *common.Conversation) {
		c.Priority = priority
		c.UpdatedAt = time.Now().UTC()
	})
}

func (s *conversationStore) SetAssignment(ctx context.Context, conversationID string, a common.Assignment) error {
	return s.update(conversationID, func(c *common.Conversation) {
		at := a.AssignedAt
		c.AssignedModerator = a.ModeratorID
		c.AssignedBy = a.AssignedBy
		c.AssignedAt = &at
		c.UpdatedAt = at
		s.db.assignmentSeq++
		c.AssignmentSeq = s.db.assignmentSeq
	})
}

func (s *conversationStore) update(conversationID string, fn func(*common.Conversation)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	conv, ok := s.db.conversations[conversationID]
	if !ok {
		return common.NewNotFoundError("conversation", conversationID)
	}
	fn(conv)
	return nil
}

func (s *conversationStore) LatestAssignment(ctx context.Context) (*common.Conversation, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var latest *common.Conversation
	for _, c := range s.db.conversations {
		if c.AssignedAt == nil {
			continue
		}
		if latest == nil || assignedAfter(c, latest) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyConversation(latest), nil
}

func (s *conversationStore) Delete(ctx context.Context, conversationID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.conversations, conversationID)
	return nil
}

func (s *conversationStore) Count(ctx context.Context) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return int64(len(s.db.conversations)), nil
}

func (s *conversationStore) PriorityStats(ctx context.Context) ([]common.PriorityCount, error) {
	s.db.mu.RLock()
	counts := make(map[common.Priority]int64)
	for _, c := range s.db.conversations {
		p := c.Priority
		if p == "" {
			p = common.PriorityMedium
		}
		counts[p]++
	}
	s.db.mu.RUnlock()

	stats := make([]common.PriorityCount, 0, len(counts))
	for p, n := range counts {
		stats = append(stats, common.PriorityCount{Priority: p, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Priority < stats[j].Priority })
	return stats, nil
}

// Summarize groups the filtered rows per conversation, then applies the
// conversation-level filters, ordering and paging.
func (s *conversationStore) Summarize(ctx context.Context, q common.SummaryQuery) (*common.SummaryPage, error) {
	viewer := q.Viewer
	if viewer == "" {
		viewer = common.ViewerModerator
	}
	unreadRole := viewer.UnreadRole()

	s.db.mu.RLock()
	rows := s.db.sortedLocked(common.MessageFilter{UserID: q.UserID, Search: q.Search})

	groups := make(map[string]*common.ConversationSummary)
	order := make([]string, 0)
	for _, m := range rows {
		g, ok := groups[m.ConversationID]
		if !ok {
			g = &common.ConversationSummary{ConversationID: m.ConversationID, UserID: m.UserID}
			groups[m.ConversationID] = g
			order = append(order, m.ConversationID)
		}
		g.LastMessage = m.Message
		g.LastTimestamp = m.Timestamp
		g.MessageCount++
		if m.Role == unreadRole && !m.IsRead {
			g.UnreadCount++
		}
		if m.Role == common.RoleModerator {
			g.HasModeratorMessages++
		}
	}

	items := make([]*common.ConversationSummary, 0, len(order))
	for _, id := range order {
		g := groups[id]
		g.Priority = common.PriorityMedium
		if conv, ok := s.db.conversations[id]; ok {
			if conv.Priority != "" {
				g.Priority = conv.Priority
			}
			g.AssignedModerator = conv.AssignedModerator
			g.AssignedBy = conv.AssignedBy
			if conv.AssignedAt != nil {
				at := *conv.AssignedAt
				g.AssignedAt = &at
			}
		}
		if q.Priority != "" && g.Priority != q.Priority {
			continue
		}
		if q.AssignedModerator != "" && g.AssignedModerator != q.AssignedModerator {
			continue
		}
		items = append(items, g)
	}
	s.db.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.LastTimestamp.Equal(b.LastTimestamp) {
			if q.SortAsc {
				return a.LastTimestamp.Before(b.LastTimestamp)
			}
			return a.LastTimestamp.After(b.LastTimestamp)
		}
		return a.ConversationID < b.ConversationID
	})

	page := &common.SummaryPage{Total: int64(len(items))}
	if q.Limit <= 0 {
		page.Items = items
		return page, nil
	}

	p := q.Page
	if p < 1 {
		p = 1
	}
	start := (p - 1) * q.Limit
	if start >= len(items) {
		page.Items = make([]*common.ConversationSummary, 0)
		return page, nil
	}
	end := start + q.Limit
	if end > len(items) {
		end = len(items)
	}
	page.Items = items[start:end]
	return page, nil
}

// assignedAfter orders by assignment sequence, then by time for records without one
func assignedAfter(a, b *common.Conversation) bool {
	if a.AssignmentSeq != b.AssignmentSeq {
		return a.AssignmentSeq > b.AssignmentSeq
	}
	if !a.AssignedAt.Equal(*b.AssignedAt) {
		return a.AssignedAt.After(*b.AssignedAt)
	}
	return a.ID > b.ID
}

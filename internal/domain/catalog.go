package domain

import "sort"

// Catalog indexes quest sessions by id and by number.
type Catalog struct {
	sessions []QuestSession
	byID     map[string]int
	byNumber map[int]int
}

func NewCatalog(sessions []QuestSession) Catalog {
	sorted := make([]QuestSession, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	c := Catalog{
		sessions: sorted,
		byID:     make(map[string]int, len(sorted)),
		byNumber: make(map[int]int, len(sorted)),
	}
	for i, q := range sorted {
		c.byID[q.ID] = i
		c.byNumber[q.Number] = i
	}
	return c
}

func (c Catalog) ByID(id string) (QuestSession, bool) {
	i, ok := c.byID[id]
	if !ok {
		return QuestSession{}, false
	}
	return c.sessions[i], true
}

func (c Catalog) ByNumber(number int) (QuestSession, bool) {
	i, ok := c.byNumber[number]
	if !ok {
		return QuestSession{}, false
	}
	return c.sessions[i], true
}

// All returns the sessions ordered by number.
func (c Catalog) All() []QuestSession {
	out := make([]QuestSession, len(c.sessions))
	copy(out, c.sessions)
	return out
}

func (c Catalog) Len() int { return len(c.sessions) }

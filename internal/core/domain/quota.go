package domain

// Quota is a room type: it bounds how many rooms of this type may exist for an
// event and how many occupants each of them takes. Holding any of ItemIDs makes
// a buyer eligible for rooms of this type.
type Quota struct {
	ID            int64
	EventID       int64
	Name          string
	Capacity      int
	ExtraCapacity int
	MaxRooms      int
	ItemIDs       []int64
}

func (q *Quota) HasItem(itemID int64) bool {
	for _, id := range q.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// EligibleItems reports whether any of itemIDs grants a room of this type.
func (q *Quota) EligibleItems(itemIDs []int64) bool {
	for _, id := range itemIDs {
		if q.HasItem(id) {
			return true
		}
	}
	return false
}

// Limit is the number of occupants a room of this type accepts.
func (q *Quota) Limit(includeExtra bool) int {
	if includeExtra {
		return q.Capacity + q.ExtraCapacity
	}
	return q.Capacity
}

package models

// Notification 用户通知
type Notification struct {
	ID             int64     `json:"id"`
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	Read           bool      `json:"read"`
	Deletable      bool      `json:"deletable"`
	CreatedAt      Timestamp `json:"createdAt"`
	RecipientEmail string    `json:"recipientEmail,omitempty"`
}

// UnreadCount counts notifications not yet marked read.
func UnreadCount(list []Notification) int {
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n
}

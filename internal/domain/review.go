package domain

// Review is a single user-submitted product review. ID and Date are assigned
// at creation and never change; Approved is flipped only by admin actions and
// mirrors which bucket of the collection currently holds the record.
type Review struct {
	ID       string   `json:"id"`
	Rating   int      `json:"rating"`
	Name     string   `json:"name"`
	Comment  string   `json:"comment"`
	Photos   []string `json:"photos"`
	Date     string   `json:"date"`
	Approved bool     `json:"approved"`
}

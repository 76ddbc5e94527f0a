package campaigns

import "time"

// Campaign statuses. A campaign is created active by seller tooling and is moved to a
// terminal status exactly once, by the settlement pass, after its release date.
const (
	StatusActive     = "ACTIVE"
	StatusReleased   = "RELEASED"
	StatusGoalFailed = "GOAL_FAILED"
)

// Campaign represents the item stored in the campaigns DynamoDB table.
type Campaign struct {
	CampaignID      string    `dynamodbav:"campaign_id"` // PK
	SellerID        string    `dynamodbav:"seller_id,omitempty"`
	Title           string    `dynamodbav:"title,omitempty"`
	TargetQuantity  int       `dynamodbav:"target_quantity"`
	CurrentQuantity int       `dynamodbav:"current_quantity"` // provisional-sale counter
	ReleaseDate     time.Time `dynamodbav:"release_date"`     // settlement deadline
	Status          string    `dynamodbav:"status"`           // ACTIVE | RELEASED | GOAL_FAILED
	CreatedAt       time.Time `dynamodbav:"created_at"`
	UpdatedAt       time.Time `dynamodbav:"updated_at"`
}

// GoalMet reports whether the provisional counter has reached the campaign goal.
func (c Campaign) GoalMet() bool {
	return c.CurrentQuantity >= c.TargetQuantity
}

// Due reports whether the campaign is past its deadline and still awaiting settlement.
func (c Campaign) Due(now time.Time) bool {
	return c.Status == StatusActive && !c.ReleaseDate.After(now)
}

package main

// SettlementMessage mirrors the payload the scheduler enqueues for one due campaign.
type SettlementMessage struct {
	CampaignID   string `json:"campaign_id"`
	ScheduledFor string `json:"scheduled_for"`
}

package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const metricNamespace = "PreorderSettlement"

// Metrics publishes settlement outcome counts to CloudWatch.
type Metrics struct {
	CW CloudWatchAPI
}

// NewMetrics returns a Metrics emitter backed by CloudWatch.
func NewMetrics(cw CloudWatchAPI) *Metrics {
	return &Metrics{CW: cw}
}

// PutSettlementOutcome emits one datum per reservation outcome status for a campaign
// settlement pass. counts is keyed by reservation status (captured, canceled, ...).
func (m *Metrics) PutSettlementOutcome(ctx context.Context, campaignID string, counts map[string]int) error {
	now := time.Now().UTC()
	data := make([]cwtypes.MetricDatum, 0, len(counts))
	for status, n := range counts {
		data = append(data, cwtypes.MetricDatum{
			MetricName: awsString("ReservationsSettled"),
			Timestamp:  &now,
			Value:      awsFloat64(float64(n)),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				{Name: awsString("CampaignId"), Value: &campaignID},
				{Name: awsString("Outcome"), Value: awsString(status)},
			},
		})
	}
	if len(data) == 0 {
		return nil
	}

	_, err := m.CW.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awsString(metricNamespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func awsFloat64(f float64) *float64 { return &f }

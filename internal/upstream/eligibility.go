package upstream

import (
	"context"
	"net/url"

	"healthbff/internal/enrichment/models"
	"healthbff/internal/permissions"
)

const ServiceEligibility = "eligibility"

type eligibilityResponse struct {
	Status   string            `json:"status"`
	TermDate *permissions.Date `json:"termDate"`
	Plans    []struct {
		PlanID         string            `json:"planId"`
		PlanName       string            `json:"planName"`
		LineOfBusiness string            `json:"lineOfBusiness"`
		EffectiveDate  *permissions.Date `json:"effectiveDate"`
		TermDate       *permissions.Date `json:"termDate"`
	} `json:"plans"`
}

// EligibilityClient reads coverage plans for an enterprise member.
type EligibilityClient struct {
	client *Client
}

func NewEligibilityClient(c *Client) *EligibilityClient {
	return &EligibilityClient{client: c}
}

func (e *EligibilityClient) FetchEligibility(ctx context.Context, enterpriseID string) (*models.Eligibility, error) {
	var resp eligibilityResponse
	if err := e.client.GetJSON(ctx, "/v1/members/"+url.PathEscape(enterpriseID)+"/eligibility", &resp); err != nil {
		return nil, err
	}
	out := &models.Eligibility{
		Status:   models.ParseEligibilityStatus(resp.Status),
		TermDate: resp.TermDate,
		Plans:    make([]models.Plan, 0, len(resp.Plans)),
	}
	for _, p := range resp.Plans {
		if p.PlanID == "" {
			continue
		}
		out.Plans = append(out.Plans, models.Plan{
			PlanID:         p.PlanID,
			PlanName:       p.PlanName,
			LineOfBusiness: p.LineOfBusiness,
			EffectiveDate:  p.EffectiveDate,
			TermDate:       p.TermDate,
		})
	}
	return out, nil
}

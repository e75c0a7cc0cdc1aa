package upstream

import (
	"context"
	"net/url"

	"healthbff/internal/permissions"
)

const ServicePermissions = "permissions"

type grantResponse struct {
	Type      string            `json:"type"`
	Active    bool              `json:"active"`
	StartDate *permissions.Date `json:"startDate"`
	StopDate  *permissions.Date `json:"stopDate"`
}

type managedMembersResponse struct {
	ManagedMembers []struct {
		EnterpriseID string          `json:"enterpriseId"`
		Name         string          `json:"name"`
		Relationship string          `json:"relationship"`
		Permissions  []grantResponse `json:"permissions"`
	} `json:"managedMembers"`
}

// PermissionsClient reads the members a subject manages and the delegate
// grants held for each.
type PermissionsClient struct {
	client *Client
}

func NewPermissionsClient(c *Client) *PermissionsClient {
	return &PermissionsClient{client: c}
}

// FetchManagedMembers drops grants of unknown type; a member with no known
// grants is kept with an empty grant map.
func (p *PermissionsClient) FetchManagedMembers(ctx context.Context, subjectID string) ([]permissions.DependentAccess, error) {
	var resp managedMembersResponse
	if err := p.client.GetJSON(ctx, "/v1/members/"+url.PathEscape(subjectID)+"/managed-members", &resp); err != nil {
		return nil, err
	}
	out := make([]permissions.DependentAccess, 0, len(resp.ManagedMembers))
	for _, m := range resp.ManagedMembers {
		if m.EnterpriseID == "" {
			continue
		}
		grants := make(map[permissions.DelegateType]permissions.DelegatePermission, len(m.Permissions))
		for _, g := range m.Permissions {
			t, ok := permissions.ParseDelegateType(g.Type)
			if !ok {
				continue
			}
			grants[t] = permissions.DelegatePermission{
				Active:    g.Active,
				StartDate: g.StartDate,
				StopDate:  g.StopDate,
			}
		}
		out = append(out, permissions.NewDependentAccess(m.EnterpriseID, m.Name, m.Relationship, grants))
	}
	return out, nil
}

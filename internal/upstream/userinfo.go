package upstream

import (
	"context"
	"net/url"
	"strings"

	"healthbff/internal/enrichment/models"
	"healthbff/internal/permissions"
)

const ServiceUserInfo = "userinfo"

type userInfoResponse struct {
	EnterpriseID       string `json:"enterpriseId"`
	Email              string `json:"email"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Birthdate          string `json:"birthdate"`
	MemberType         string `json:"memberType"`
	IsResponsibleParty bool   `json:"isResponsibleParty"`
}

// UserInfoClient reads identity profiles.
type UserInfoClient struct {
	client *Client
}

func NewUserInfoClient(c *Client) *UserInfoClient {
	return &UserInfoClient{client: c}
}

func (u *UserInfoClient) FetchUserInfo(ctx context.Context, subjectID string) (*models.UserInfo, error) {
	var resp userInfoResponse
	if err := u.client.GetJSON(ctx, "/v1/members/"+url.PathEscape(subjectID)+"/userinfo", &resp); err != nil {
		return nil, err
	}
	info := &models.UserInfo{
		SubjectID:    subjectID,
		EnterpriseID: strings.TrimSpace(resp.EnterpriseID),
		Email:        resp.Email,
		FirstName:    resp.FirstName,
		LastName:     resp.LastName,
		IsResponsibleParty: resp.IsResponsibleParty ||
			strings.EqualFold(resp.MemberType, "RESPONSIBLE_PARTY"),
	}
	if resp.Birthdate != "" {
		d, err := permissions.ParseDate(resp.Birthdate)
		if err != nil {
			return nil, NewError(BadData, u.client.Service(), "invalid birthdate", err)
		}
		info.Birthdate = &d
	}
	return info, nil
}

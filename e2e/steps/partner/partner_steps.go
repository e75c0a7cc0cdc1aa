package partner

import (
	"context"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	POSTWithHeaders(path string, body any, headers map[string]string) error
}

// RegisterSteps registers partner (proxy) step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &partnerSteps{tc: tc, headers: map[string]string{}}

	ctx.Step(`^a "([^"]*)" operator "([^"]*)" from partner "([^"]*)" assigned to "([^"]*)"$`, steps.operator)
	ctx.Step(`^the operator views member "([^"]*)"$`, steps.viewMember)
	ctx.Step(`^the operator GETs "([^"]*)"$`, steps.get)
	ctx.Step(`^the operator POSTs "([^"]*)"$`, steps.post)
}

type partnerSteps struct {
	tc      TestContext
	headers map[string]string
}

func (s *partnerSteps) operator(ctx context.Context, persona, operatorID, clientID, enterpriseID string) error {
	s.headers = map[string]string{
		"X-Auth-Type":                 "PROXY",
		"X-Client-Id":                 clientID,
		"X-Enterprise-Id":             enterpriseID,
		"X-Logged-In-Member-Id-Value": operatorID,
		"X-Logged-In-Member-Id-Type":  "OHID",
		"X-Logged-In-Member-Persona":  persona,
	}
	return nil
}

func (s *partnerSteps) viewMember(ctx context.Context, memberID string) error {
	return s.tc.GET("/api/partner/v1/members/"+memberID, s.headers)
}

func (s *partnerSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, s.headers)
}

func (s *partnerSteps) post(ctx context.Context, path string) error {
	return s.tc.POSTWithHeaders(path, nil, s.headers)
}

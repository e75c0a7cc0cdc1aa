package session

import (
	"context"
	"strings"

	"github.com/cucumber/godog"

	"healthbff/e2e/stubs"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	SaveCookies() error
	ReplaySavedCookies(path string) error
}

// RegisterSteps registers member session step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &sessionSteps{tc: tc}

	ctx.Step(`^I log in as "([^"]*)"$`, steps.logIn)
	ctx.Step(`^I log in as "([^"]*)" without an ID token$`, steps.logInUnverified)
	ctx.Step(`^I remember my session cookie$`, steps.rememberCookie)
	ctx.Step(`^I log out$`, steps.logOut)
	ctx.Step(`^I request my session$`, steps.requestSession)
	ctx.Step(`^I request my session with the remembered cookie$`, steps.requestSessionWithRememberedCookie)
	ctx.Step(`^I refresh my permissions$`, steps.refreshPermissions)
	ctx.Step(`^I ask to "([^"]*)" the (sensitive )?"([^"]*)" "([^"]*)"$`, steps.authorize)
	ctx.Step(`^I upload a document for member "([^"]*)"$`, steps.uploadDocument)
}

type sessionSteps struct {
	tc TestContext
}

func (s *sessionSteps) logIn(ctx context.Context, subjectID string) error {
	idToken, err := stubs.IDToken(subjectID)
	if err != nil {
		return err
	}
	return s.tc.POST("/auth/login", map[string]any{
		"idToken":     idToken,
		"accessToken": "idp-access-" + subjectID,
		"expiresIn":   3600,
	})
}

func (s *sessionSteps) logInUnverified(ctx context.Context, subjectID string) error {
	return s.tc.POST("/auth/login", map[string]any{"subjectId": subjectID})
}

func (s *sessionSteps) rememberCookie(ctx context.Context) error {
	return s.tc.SaveCookies()
}

func (s *sessionSteps) logOut(ctx context.Context) error {
	return s.tc.POST("/api/v1/auth/logout", nil)
}

func (s *sessionSteps) requestSession(ctx context.Context) error {
	return s.tc.GET("/api/v1/session", nil)
}

func (s *sessionSteps) requestSessionWithRememberedCookie(ctx context.Context) error {
	return s.tc.ReplaySavedCookies("/api/v1/session")
}

func (s *sessionSteps) refreshPermissions(ctx context.Context) error {
	return s.tc.POST("/api/v1/session/permissions/refresh", nil)
}

func (s *sessionSteps) authorize(ctx context.Context, action, sensitive, resourceType, resourceID string) error {
	return s.tc.POST("/api/v1/authorize", map[string]any{
		"resource": map[string]any{
			"type":      strings.ToUpper(resourceType),
			"id":        resourceID,
			"sensitive": sensitive != "",
		},
		"action": strings.ToUpper(action),
	})
}

func (s *sessionSteps) uploadDocument(ctx context.Context, memberID string) error {
	return s.tc.POST("/api/v1/members/"+memberID+"/documents", map[string]any{
		"fileName": "lab-results.pdf",
	})
}

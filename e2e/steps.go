package e2e

import (
	"github.com/cucumber/godog"

	"healthbff/e2e/steps/common"
	"healthbff/e2e/steps/partner"
	"healthbff/e2e/steps/session"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	session.RegisterSteps(ctx, tc)
	partner.RegisterSteps(ctx, tc)
}

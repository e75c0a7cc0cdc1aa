// Package stubs serves canned identity, eligibility and permissions data on
// the ports the gateway targets by default.
package stubs

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	UserInfoAddr    = "localhost:9001"
	EligibilityAddr = "localhost:9002"
	PermissionsAddr = "localhost:9003"
)

type grant struct {
	Type      string `json:"type"`
	Active    bool   `json:"active"`
	StartDate string `json:"startDate,omitempty"`
	StopDate  string `json:"stopDate,omitempty"`
}

type managedMember struct {
	EnterpriseID string  `json:"enterpriseId"`
	Name         string  `json:"name"`
	Relationship string  `json:"relationship"`
	Permissions  []grant `json:"permissions"`
}

type userInfo struct {
	EnterpriseID       string `json:"enterpriseId"`
	Email              string `json:"email"`
	FirstName          string `json:"firstName,omitempty"`
	LastName           string `json:"lastName,omitempty"`
	Birthdate          string `json:"birthdate"`
	IsResponsibleParty bool   `json:"isResponsibleParty"`
}

type plan struct {
	PlanID   string `json:"planId"`
	PlanName string `json:"planName"`
}

type eligibility struct {
	Status string `json:"status"`
	Plans  []plan `json:"plans"`
}

func active(types ...string) []grant {
	out := make([]grant, len(types))
	for i, t := range types {
		out[i] = grant{Type: t, Active: true, StartDate: "2020-01-01"}
	}
	return out
}

// Fixtures keyed by subject id (userinfo, permissions) or enterprise id
// (eligibility).
func fixtures(now time.Time) (map[string]userInfo, map[string]eligibility, map[string][]managedMember) {
	teen := now.AddDate(-10, 0, 0).Format("2006-01-02")
	users := map[string]userInfo{
		"RP-1":     {EnterpriseID: "ENT-RP1", Email: "pat.doe@example.com", FirstName: "Pat", LastName: "Doe", Birthdate: "1980-04-12", IsResponsibleParty: true},
		"SELF-1":   {EnterpriseID: "ENT-SELF", Email: "sam.lee@example.com", Birthdate: "1990-09-30"},
		"TEEN-1":   {EnterpriseID: "ENT-TEEN", Email: "kid@example.com", Birthdate: teen},
		"NOPLAN-1": {EnterpriseID: "ENT-NOPLAN", Email: "nolan@example.com", Birthdate: "1975-02-02"},
	}
	coverage := eligibility{Status: "ACTIVE", Plans: []plan{{PlanID: "PLN-1", PlanName: "Gold PPO"}}}
	eligible := map[string]eligibility{
		"ENT-RP1":    {Status: "INACTIVE"},
		"ENT-SELF":   coverage,
		"ENT-TEEN":   coverage,
		"ENT-9":      coverage,
		"ENT-NOPLAN": {Status: "INACTIVE"},
	}
	members := map[string][]managedMember{
		"RP-1": {
			{EnterpriseID: "DEP-1", Name: "Riley Doe", Relationship: "CHILD", Permissions: active("DAA", "RPR", "ROI")},
			{EnterpriseID: "DEP-2", Name: "Jamie Doe", Relationship: "CHILD", Permissions: active("DAA", "ROI")},
		},
	}
	return users, eligible, members
}

// Backends is the set of stub servers for one test run.
type Backends struct {
	servers []*http.Server
}

// Start listens on the three backend ports. It fails when any port is taken.
func Start() (*Backends, error) {
	users, eligible, members := fixtures(time.Now())
	routes := map[string]http.Handler{
		UserInfoAddr: memberRoute("userinfo", func(id string) (any, bool) {
			u, ok := users[id]
			return u, ok
		}),
		EligibilityAddr: memberRoute("eligibility", func(id string) (any, bool) {
			e, ok := eligible[id]
			return e, ok
		}),
		PermissionsAddr: memberRoute("managed-members", func(id string) (any, bool) {
			return map[string]any{"managedMembers": nonNil(members[id])}, true
		}),
	}

	b := &Backends{}
	for addr, h := range routes {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			b.Stop()
			return nil, err
		}
		srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
		b.servers = append(b.servers, srv)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				panic(err)
			}
		}()
	}
	return b, nil
}

func (b *Backends) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, srv := range b.servers {
		_ = srv.Shutdown(ctx)
	}
}

// memberRoute answers GET /v1/members/{id}/{suffix}.
func memberRoute(suffix string, lookup func(id string) (any, bool)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest, ok := strings.CutPrefix(r.URL.Path, "/v1/members/")
		id, tail, found := strings.Cut(rest, "/")
		if !ok || !found || tail != suffix || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		body, ok := lookup(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
}

func nonNil(m []managedMember) []managedMember {
	if m == nil {
		return []managedMember{}
	}
	return m
}

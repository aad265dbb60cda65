package scopes

import (
	"sort"

	armodels "apihub/internal/accessrequest/models"
	appmodels "apihub/internal/application/models"
)

// TargetScopes computes the scopes the application's credential should hold
// in env.
//
// Ungated environments receive every scope of every linked endpoint. Gated
// environments receive the scopes of a linked endpoint only when an approved
// access request for the same application and API covers that endpoint.
// The result is sorted and free of duplicates.
func TargetScopes(app appmodels.Application, env appmodels.Environment, requests []armodels.AccessRequest) []string {
	set := make(map[string]struct{})
	for _, api := range app.Apis {
		if !env.Gated {
			for _, s := range api.Scopes() {
				set[s] = struct{}{}
			}
			continue
		}
		approved := approvedFor(app, api, requests)
		if len(approved) == 0 {
			continue
		}
		for _, endpoint := range api.Endpoints {
			for _, ar := range approved {
				requested, ok := ar.Endpoint(endpoint)
				if !ok {
					continue
				}
				for _, s := range requested.Scopes {
					set[s] = struct{}{}
				}
			}
		}
	}
	return sortedSet(set)
}

func approvedFor(app appmodels.Application, api appmodels.Api, requests []armodels.AccessRequest) []armodels.AccessRequest {
	var out []armodels.AccessRequest
	for _, ar := range requests {
		if ar.ApplicationID == app.ID && ar.ApiID == api.ID && ar.Status == armodels.StatusApproved {
			out = append(out, ar)
		}
	}
	return out
}

// Diff returns target minus current and current minus target, both sorted.
func Diff(target, current []string) (toAdd, toRemove []string) {
	want := toSet(target)
	have := toSet(current)
	for s := range want {
		if _, ok := have[s]; !ok {
			toAdd = append(toAdd, s)
		}
	}
	for s := range have {
		if _, ok := want[s]; !ok {
			toRemove = append(toRemove, s)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

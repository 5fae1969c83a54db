package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"paas-deployer/internal/config"
	"paas-deployer/internal/model"
	"paas-deployer/pkg/utils"
)

// StaticProvider serves applications declared in configuration. It never
// creates applications; unknown names are NotFound errors.
type StaticProvider struct {
	apps []config.ApplicationConfig
}

func NewStaticProvider(apps []config.ApplicationConfig) *StaticProvider {
	return &StaticProvider{apps: apps}
}

func (p *StaticProvider) GetOrCreate(_ context.Context, spec model.ApplicationSpec) (model.TargetApplication, error) {
	var candidates []config.ApplicationConfig
	for _, app := range p.apps {
		if app.Name == spec.Name && (spec.Domain == "" || app.Domain == spec.Domain) {
			candidates = append(candidates, app)
		}
	}
	if len(candidates) == 0 {
		return nil, utils.NewNotFoundError("Application", qualified(spec.Name, spec.Domain))
	}

	domain, err := domainFor(spec.Domain, candidates)
	if err != nil {
		return nil, err
	}

	for _, app := range candidates {
		if app.Domain != domain {
			continue
		}
		if app.Runtime != "" && !hasCartridge(spec.Cartridges, app.Runtime) {
			return nil, utils.NewInvalidInputError(
				fmt.Sprintf("cartridges for %s, application runs %s", app.Name, app.Runtime),
				strings.Join(spec.Cartridges, " "))
		}
		return model.Application{
			AppName: app.Name,
			Git:     app.GitURL,
			SSH:     app.SSHURL,
			URL:     app.AppURL,
		}, nil
	}
	return nil, utils.NewNotFoundError("Application", qualified(spec.Name, domain))
}

// domainFor picks the only domain among the applications carrying the
// requested name when no domain is requested.
func domainFor(requested string, apps []config.ApplicationConfig) (string, error) {
	if requested != "" {
		return requested, nil
	}

	seen := map[string]bool{}
	for _, app := range apps {
		seen[app.Domain] = true
	}
	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	if len(domains) == 1 {
		return domains[0], nil
	}
	return "", utils.NewValidationError(
		fmt.Sprintf("Domain (%d domains configured)", len(domains)),
		strings.Join(domains, ", "))
}

func hasCartridge(cartridges []string, runtime string) bool {
	for _, c := range cartridges {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(runtime)) {
			return true
		}
	}
	return false
}

func qualified(name, domain string) string {
	if domain == "" {
		return name
	}
	return name + "-" + domain
}

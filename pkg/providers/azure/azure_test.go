package azure

import (
	"testing"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
)

func testProvider(project string) *Provider {
	return &Provider{
		req:          &config.Request{Provider: "azure", Environment: "staging", Project: project},
		subscription: "00000000-0000-0000-0000-000000000000",
		location:     "eastus",
	}
}

func TestResourceGroup(t *testing.T) {
	p := testProvider("acme")
	if got := p.resourceGroup(); got != "acme-staging-rg" {
		t.Errorf("resourceGroup() = %q, want %q", got, "acme-staging-rg")
	}
}

func TestRegistryName(t *testing.T) {
	tests := []struct {
		project string
		want    string
	}{
		{"acme", "acmestaging"},
		{"my-cool-app", "mycoolappstaging"},
		{"snake_case", "snakecasestaging"},
	}

	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			p := testProvider(tt.project)
			if got := p.registryName(); got != tt.want {
				t.Errorf("registryName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequiredTools(t *testing.T) {
	tools := testProvider("acme").RequiredTools()
	if len(tools) != 1 || tools[0] != "az" {
		t.Errorf("RequiredTools() = %v", tools)
	}
}

package client

import (
	"encoding/json"
	"sort"
	"strings"

	"tether/internal/types"
)

type ChatRequest struct {
	ProviderID string       `json:"providerID"`
	ModelID    string       `json:"modelID"`
	Parts      []types.Part `json:"parts"`
}

type ProviderModel struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Provider struct {
	ID     string
	Name   string
	Models []ProviderModel
}

type ProviderCatalog struct {
	Providers []Provider
	// Defaults maps provider id to its default model id.
	Defaults map[string]string
}

// DefaultModel picks a provider/model pair: the first provider, in catalog
// order, that declares a default model.
func (c *ProviderCatalog) DefaultModel() (providerID, modelID string, ok bool) {
	if c == nil {
		return "", "", false
	}
	for _, provider := range c.Providers {
		if model := strings.TrimSpace(c.Defaults[provider.ID]); model != "" {
			return provider.ID, model, true
		}
	}
	return "", "", false
}

type providersResponse struct {
	Providers []struct {
		ID     string          `json:"id"`
		Name   string          `json:"name"`
		Models json.RawMessage `json:"models"`
	} `json:"providers"`
	Default map[string]string `json:"default"`
}

func (r providersResponse) catalog() *ProviderCatalog {
	out := &ProviderCatalog{Defaults: map[string]string{}}
	for key, value := range r.Default {
		out.Defaults[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	for _, raw := range r.Providers {
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			continue
		}
		out.Providers = append(out.Providers, Provider{
			ID:     id,
			Name:   strings.TrimSpace(raw.Name),
			Models: parseProviderModels(raw.Models),
		})
	}
	return out
}

// parseProviderModels accepts both the keyed object shape and the older
// array shape the server has used for models.
func parseProviderModels(raw json.RawMessage) []ProviderModel {
	if len(raw) == 0 {
		return nil
	}
	var keyed map[string]ProviderModel
	if err := json.Unmarshal(raw, &keyed); err == nil {
		out := make([]ProviderModel, 0, len(keyed))
		for key, model := range keyed {
			if strings.TrimSpace(model.ID) == "" {
				model.ID = key
			}
			out = append(out, model)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := make([]ProviderModel, 0, len(list))
	for _, entry := range list {
		var model ProviderModel
		if err := json.Unmarshal(entry, &model); err == nil && model.ID != "" {
			out = append(out, model)
			continue
		}
		var id string
		if err := json.Unmarshal(entry, &id); err == nil && strings.TrimSpace(id) != "" {
			out = append(out, ProviderModel{ID: strings.TrimSpace(id)})
		}
	}
	return out
}

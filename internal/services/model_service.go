package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ideaforge/internal/assets"
	"ideaforge/internal/models"
	"ideaforge/internal/repositories"
)

type ModelConfigService interface {
	Startup(ctx context.Context) error
	ListModelGroups() ([]models.LLMModelGroup, error)
	SetModelEnabled(modelKey string, enabled bool) (*models.LLMModel, error)
	SetProviderEnabled(provider string, enabled bool) ([]models.LLMModel, error)
	GetModel(modelKey string) (*models.LLMModel, error)
}

type modelConfigService struct {
	repo repositories.ModelSettingRepository
	ctx  context.Context

	mu            sync.RWMutex
	providerOrder []string
	providerNames map[string]string
	catalog       map[string]*catalogEntry
	settings      map[string]bool
}

type catalogEntry struct {
	Key         string
	ProviderID  string
	Provider    string
	DisplayName string
	APIName     string

	ReasoningEffort string
	Thinking        *bool
}

type modelCatalogFile struct {
	Providers []struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		Models      []struct {
			DisplayName     string `json:"displayName"`
			APIName         string `json:"apiName"`
			ReasoningEffort string `json:"reasoningEffort,omitempty"`
			Thinking        *bool  `json:"thinking,omitempty"`
		} `json:"models"`
	} `json:"providers"`
}

func NewModelConfigService(repo repositories.ModelSettingRepository) ModelConfigService {
	return &modelConfigService{
		repo:          repo,
		catalog:       make(map[string]*catalogEntry),
		settings:      make(map[string]bool),
		providerNames: make(map[string]string),
	}
}

// Startup parses the embedded model catalog, loads persisted enablement
// settings, and seeds defaults for catalog entries seen for the first
// time.
func (s *modelConfigService) Startup(ctx context.Context) error {
	s.ctx = ctx

	var parsed modelCatalogFile
	if err := json.Unmarshal(assets.ModelsData, &parsed); err != nil {
		return fmt.Errorf("parse models asset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.providerOrder = s.providerOrder[:0]
	for _, provider := range parsed.Providers {
		providerID := strings.TrimSpace(provider.ID)
		if providerID == "" {
			continue
		}
		s.providerNames[providerID] = strings.TrimSpace(provider.DisplayName)
		s.providerOrder = append(s.providerOrder, providerID)
		for _, mdl := range provider.Models {
			key := computeModelKey(providerID, mdl.APIName, mdl.ReasoningEffort, mdl.Thinking)
			s.catalog[key] = &catalogEntry{
				Key:             key,
				ProviderID:      providerID,
				Provider:        s.providerNames[providerID],
				DisplayName:     strings.TrimSpace(mdl.DisplayName),
				APIName:         strings.TrimSpace(mdl.APIName),
				ReasoningEffort: strings.TrimSpace(mdl.ReasoningEffort),
				Thinking:        mdl.Thinking,
			}
		}
	}

	existing, err := s.repo.List()
	if err != nil {
		return fmt.Errorf("load model settings: %w", err)
	}
	for _, setting := range existing {
		s.settings[setting.ModelKey] = setting.Enabled
	}
	for key, entry := range s.catalog {
		if _, ok := s.settings[key]; !ok {
			if _, err := s.repo.Upsert(key, entry.ProviderID, true); err != nil {
				return fmt.Errorf("seed model setting for %s: %w", key, err)
			}
			s.settings[key] = true
		}
	}
	return nil
}

func (s *modelConfigService) ListModelGroups() ([]models.LLMModelGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]models.LLMModelGroup, 0, len(s.providerOrder))
	for _, providerID := range s.providerOrder {
		group := models.LLMModelGroup{
			ProviderID:   providerID,
			ProviderName: s.providerName(providerID),
		}
		for _, entry := range s.catalog {
			if entry.ProviderID == providerID {
				group.Models = append(group.Models, s.toLLMModel(entry))
			}
		}
		sortModelsByName(group.Models)
		groups = append(groups, group)
	}
	return groups, nil
}

func (s *modelConfigService) SetModelEnabled(modelKey string, enabled bool) (*models.LLMModel, error) {
	modelKey = strings.TrimSpace(modelKey)
	if modelKey == "" {
		return nil, fmt.Errorf("model key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.catalog[modelKey]
	if !ok {
		return nil, fmt.Errorf("model %s not found", modelKey)
	}
	if _, err := s.repo.Upsert(modelKey, entry.ProviderID, enabled); err != nil {
		return nil, err
	}
	s.settings[modelKey] = enabled
	mdl := s.toLLMModel(entry)
	return &mdl, nil
}

func (s *modelConfigService) SetProviderEnabled(provider string, enabled bool) ([]models.LLMModel, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SetProviderEnabled(provider, enabled); err != nil {
		return nil, err
	}

	updated := make([]models.LLMModel, 0)
	for _, entry := range s.catalog {
		if entry.ProviderID != provider {
			continue
		}
		s.settings[entry.Key] = enabled
		updated = append(updated, s.toLLMModel(entry))
	}
	sortModelsByName(updated)
	return updated, nil
}

func (s *modelConfigService) GetModel(modelKey string) (*models.LLMModel, error) {
	modelKey = strings.TrimSpace(modelKey)
	if modelKey == "" {
		return nil, fmt.Errorf("model key is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.catalog[modelKey]
	if !ok {
		return nil, fmt.Errorf("model %s not found", modelKey)
	}
	mdl := s.toLLMModel(entry)
	return &mdl, nil
}

func (s *modelConfigService) providerName(providerID string) string {
	if name, ok := s.providerNames[providerID]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return providerID
}

func (s *modelConfigService) toLLMModel(entry *catalogEntry) models.LLMModel {
	return models.LLMModel{
		Key:             entry.Key,
		DisplayName:     entry.DisplayName,
		APIName:         entry.APIName,
		ProviderID:      entry.ProviderID,
		ProviderName:    entry.Provider,
		ReasoningEffort: entry.ReasoningEffort,
		Thinking:        entry.Thinking,
		Enabled:         s.settings[entry.Key],
	}
}

func sortModelsByName(list []models.LLMModel) {
	sort.SliceStable(list, func(i, j int) bool {
		return strings.ToLower(list[i].DisplayName) < strings.ToLower(list[j].DisplayName)
	})
}

// computeModelKey builds a stable identifier from provider, API name,
// and behavioral attributes, so the same API model with different
// attributes gets distinct settings.
func computeModelKey(providerID, apiName, reasoningEffort string, thinking *bool) string {
	parts := []string{strings.TrimSpace(providerID), strings.TrimSpace(apiName)}

	var attrs []string
	if re := strings.TrimSpace(reasoningEffort); re != "" {
		attrs = append(attrs, "reasoning="+re)
	}
	if thinking != nil {
		attrs = append(attrs, fmt.Sprintf("thinking=%t", *thinking))
	}
	if len(attrs) > 0 {
		sort.Strings(attrs)
		parts = append(parts, strings.Join(attrs, ","))
	}
	return strings.Join(parts, "|")
}

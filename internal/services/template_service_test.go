package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaforge/internal/models"
)

type templateRepoMock struct {
	listFunc         func() ([]models.PromptTemplate, error)
	getByNameFunc    func(name string) (*models.PromptTemplate, error)
	saveFunc         func(tpl *models.PromptTemplate) error
	deleteByNameFunc func(name string) error
}

func (m *templateRepoMock) List() ([]models.PromptTemplate, error) {
	return m.listFunc()
}

func (m *templateRepoMock) GetByName(name string) (*models.PromptTemplate, error) {
	return m.getByNameFunc(name)
}

func (m *templateRepoMock) Save(tpl *models.PromptTemplate) error {
	return m.saveFunc(tpl)
}

func (m *templateRepoMock) DeleteByName(name string) error {
	return m.deleteByNameFunc(name)
}

func TestResolveReturnsOverride(t *testing.T) {
	svc := NewPromptTemplateService(&templateRepoMock{
		getByNameFunc: func(name string) (*models.PromptTemplate, error) {
			return &models.PromptTemplate{Name: name, Content: "custom prompt"}, nil
		},
	})

	content, err := svc.Resolve("planning_system")
	require.NoError(t, err)
	assert.Equal(t, "custom prompt", content)
}

func TestResolveFallsBackToEmbedded(t *testing.T) {
	svc := NewPromptTemplateService(&templateRepoMock{
		getByNameFunc: func(name string) (*models.PromptTemplate, error) {
			return nil, nil
		},
	})

	content, err := svc.Resolve("planning_system")
	require.NoError(t, err)
	assert.Contains(t, content, "{{IDEA_TITLE}}")
}

func TestResolveUnknownTemplate(t *testing.T) {
	svc := NewPromptTemplateService(&templateRepoMock{
		getByNameFunc: func(name string) (*models.PromptTemplate, error) {
			return nil, nil
		},
	})

	_, err := svc.Resolve("no_such_template")
	assert.Error(t, err)

	_, err = svc.Resolve("  ")
	assert.Error(t, err)
}

func TestSaveValidatesInput(t *testing.T) {
	svc := NewPromptTemplateService(&templateRepoMock{
		saveFunc: func(tpl *models.PromptTemplate) error { return nil },
	})

	_, err := svc.Save("", "content")
	assert.Error(t, err)
	_, err = svc.Save("name", "   ")
	assert.Error(t, err)

	tpl, err := svc.Save(" planning_system ", "body")
	require.NoError(t, err)
	assert.Equal(t, "planning_system", tpl.Name)
}

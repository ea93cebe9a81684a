package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaforge/internal/models"
)

type ideaRepoMock struct {
	createFunc            func(idea *models.Idea) error
	getByIDFunc           func(id uint) (*models.Idea, error)
	listByUserFunc        func(userID uint) ([]models.Idea, error)
	updateFunc            func(idea *models.Idea) error
	deleteByIDFunc        func(id uint) error
	addContextLinkFunc    func(link *models.ContextLink) error
	getContextLinkFunc    func(id, userID uint) (*models.ContextLink, error)
	listContextLinksFunc  func(ideaID uint) ([]models.ContextLink, error)
	deleteContextLinkFunc func(id uint) error
}

func (m *ideaRepoMock) Create(idea *models.Idea) error {
	return m.createFunc(idea)
}

func (m *ideaRepoMock) GetByID(id uint) (*models.Idea, error) {
	return m.getByIDFunc(id)
}

func (m *ideaRepoMock) ListByUser(userID uint) ([]models.Idea, error) {
	return m.listByUserFunc(userID)
}

func (m *ideaRepoMock) Update(idea *models.Idea) error {
	return m.updateFunc(idea)
}

func (m *ideaRepoMock) DeleteByID(id uint) error {
	return m.deleteByIDFunc(id)
}

func (m *ideaRepoMock) AddContextLink(link *models.ContextLink) error {
	return m.addContextLinkFunc(link)
}

func (m *ideaRepoMock) GetContextLink(id, userID uint) (*models.ContextLink, error) {
	return m.getContextLinkFunc(id, userID)
}

func (m *ideaRepoMock) ListContextLinks(ideaID uint) ([]models.ContextLink, error) {
	return m.listContextLinksFunc(ideaID)
}

func (m *ideaRepoMock) DeleteContextLink(id uint) error {
	return m.deleteContextLinkFunc(id)
}

func TestClassifyCodeIdea(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		hasLinks bool
		expected bool
	}{
		{"code keywords", "Fix the flaky API test in the build", false, true},
		{"non-code keywords", "Write a blog article and a marketing letter", false, false},
		{"neutral text is a tie", "Something about gardening", false, true},
		{"links outweigh one negative", "Write a blog for the project", true, true},
		{"strong negative beats link bias", "essay, poem, recipe, marketing", true, false},
	}

	for _, tc := range cases {
		if got := classifyCodeIdea(tc.text, tc.hasLinks); got != tc.expected {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestResolveIdeaContextNonCodeIdea(t *testing.T) {
	repo := &ideaRepoMock{
		getByIDFunc: func(id uint) (*models.Idea, error) {
			return &models.Idea{ID: id, Title: "Travel blog", Summary: "an article series about an itinerary"}, nil
		},
		listContextLinksFunc: func(ideaID uint) ([]models.ContextLink, error) {
			return nil, nil
		},
	}

	res, err := NewContextService(repo).ResolveIdeaContext(1, 1)
	require.NoError(t, err)
	require.NotNil(t, res.Context)
	assert.False(t, res.Context.IsCodeIdea)
	assert.Nil(t, res.Question)
}

func TestResolveIdeaContextFromLocalCheckout(t *testing.T) {
	dir := t.TempDir()
	repo := &ideaRepoMock{
		getByIDFunc: func(id uint) (*models.Idea, error) {
			return &models.Idea{ID: id, Title: "Refactor the backend module"}, nil
		},
		listContextLinksFunc: func(ideaID uint) ([]models.ContextLink, error) {
			return []models.ContextLink{
				{ID: 7, Name: "workbench", LocalPath: dir, Branch: "main"},
			}, nil
		},
	}

	res, err := NewContextService(repo).ResolveIdeaContext(1, 1)
	require.NoError(t, err)
	require.NotNil(t, res.Context)
	assert.True(t, res.Context.IsCodeIdea)
	assert.Equal(t, dir, res.Context.WorkingDir)
	assert.Equal(t, "main", res.Context.Branch)
	assert.False(t, res.Context.RequiresClone)
	assert.Equal(t, uint(7), res.Context.SourceID)
	assert.Equal(t, "workbench", res.Context.SourceName)
}

func TestResolveIdeaContextRemoteOnlyRequiresClone(t *testing.T) {
	repo := &ideaRepoMock{
		getByIDFunc: func(id uint) (*models.Idea, error) {
			return &models.Idea{ID: id, Title: "Implement the CLI"}, nil
		},
		listContextLinksFunc: func(ideaID uint) ([]models.ContextLink, error) {
			return []models.ContextLink{
				{ID: 3, Name: "upstream", RemoteURL: "https://example.com/acme/cli.git", Branch: "develop"},
			}, nil
		},
	}

	res, err := NewContextService(repo).ResolveIdeaContext(1, 1)
	require.NoError(t, err)
	require.NotNil(t, res.Context)
	assert.True(t, res.Context.RequiresClone)
	assert.Equal(t, "https://example.com/acme/cli.git", res.Context.RemoteURL)
	assert.Equal(t, "develop", res.Context.Branch)
}

func TestResolveIdeaContextClarifyingQuestion(t *testing.T) {
	repo := &ideaRepoMock{
		getByIDFunc: func(id uint) (*models.Idea, error) {
			return &models.Idea{ID: id, Title: "Fix the login bug"}, nil
		},
		listContextLinksFunc: func(ideaID uint) ([]models.ContextLink, error) {
			return nil, nil
		},
	}

	res, err := NewContextService(repo).ResolveIdeaContext(1, 1)
	require.NoError(t, err)
	assert.Nil(t, res.Context)
	require.NotNil(t, res.Question)
	assert.NotEmpty(t, res.Question.Question)
	assert.Len(t, res.Question.Options, 2)
}

func TestResolveIdeaContextSkipsMissingLocalPath(t *testing.T) {
	repo := &ideaRepoMock{
		getByIDFunc: func(id uint) (*models.Idea, error) {
			return &models.Idea{ID: id, Title: "Build a deploy script"}, nil
		},
		listContextLinksFunc: func(ideaID uint) ([]models.ContextLink, error) {
			return []models.ContextLink{
				{ID: 1, LocalPath: "/definitely/not/a/real/checkout"},
				{ID: 2, RemoteURL: "git@example.com:acme/deploy.git"},
			}, nil
		},
	}

	res, err := NewContextService(repo).ResolveIdeaContext(1, 1)
	require.NoError(t, err)
	require.NotNil(t, res.Context)
	assert.Equal(t, uint(2), res.Context.SourceID)
	assert.True(t, res.Context.RequiresClone)
}

func TestResolveKeyProperties(t *testing.T) {
	dir := t.TempDir()
	repo := &ideaRepoMock{
		getContextLinkFunc: func(id, userID uint) (*models.ContextLink, error) {
			switch id {
			case 1:
				return &models.ContextLink{ID: 1, LocalPath: dir, Branch: "main"}, nil
			case 2:
				return &models.ContextLink{ID: 2, RemoteURL: "https://example.com/acme/repo.git"}, nil
			default:
				return nil, nil
			}
		},
	}
	svc := NewContextService(repo)

	local, err := svc.ResolveKeyProperties(1, 1)
	require.NoError(t, err)
	assert.Equal(t, dir, local.LocalPath)
	assert.False(t, local.RequiresClone)

	remote, err := svc.ResolveKeyProperties(2, 1)
	require.NoError(t, err)
	assert.True(t, remote.RequiresClone)

	_, err = svc.ResolveKeyProperties(99, 1)
	assert.Error(t, err)
}

func TestGetLinkedItemScopedToOwner(t *testing.T) {
	var gotUserID uint
	repo := &ideaRepoMock{
		getContextLinkFunc: func(id, userID uint) (*models.ContextLink, error) {
			gotUserID = userID
			return nil, nil
		},
	}

	item, err := NewContextService(repo).GetLinkedItem(5, 42)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, uint(42), gotUserID)
}

func TestExecutionContextDescribe(t *testing.T) {
	var ec *ExecutionContext
	assert.Contains(t, ec.Describe(), "not code-related")

	ec = &ExecutionContext{
		IsCodeIdea:    true,
		RemoteURL:     "https://example.com/acme/repo.git",
		Branch:        "main",
		RequiresClone: true,
	}
	desc := ec.Describe()
	assert.Contains(t, desc, "coding idea")
	assert.Contains(t, desc, "https://example.com/acme/repo.git")
	assert.Contains(t, desc, "main")
	assert.Contains(t, desc, "not been cloned")
}

package traversal

import (
	"strings"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/config"
)

// defaultTestProjectMarkers are file-path substrings used to infer that a
// method is defined inside a test project, absent richer project metadata.
var defaultTestProjectMarkers = []string{".Tests/", ".Test/", "/test/", "/tests/"}

// Classifier categorizes methods by containing type and file path, driven
// entirely by configured prefix/substring lists: never by reflection or
// hard-coded framework knowledge.
type Classifier struct {
	frameworkPrefixes   []string
	thirdPartyPrefixes  []string
	dataAccessPrefixes  []string
	infrastructureNames []string
	testProjectMarkers  []string
	treatInfraAsProd    bool
}

// NewClassifier builds a Classifier from loaded traversal configuration.
func NewClassifier(cfg config.TraversalConfig) *Classifier {
	return &Classifier{
		frameworkPrefixes:   cfg.FrameworkPrefixes,
		thirdPartyPrefixes:  cfg.ThirdPartyPrefixes,
		dataAccessPrefixes:  cfg.DataAccessPrefixes,
		infrastructureNames: cfg.InfrastructureNames,
		testProjectMarkers:  defaultTestProjectMarkers,
		treatInfraAsProd:    cfg.TreatInfraAsProd,
	}
}

// Classify assigns a Category to a non-test method. Callers are expected
// to have already excluded is_test methods from the production category
// space; Classify still checks IsTest defensively and returns
// CategoryTestUtility-ineligible BusinessLogic for it, since a test method
// should never reach this path in normal use.
func (c *Classifier) Classify(info callgraph.MethodInfo) Category {
	qualifiedName := info.ContainingType

	for _, prefix := range c.frameworkPrefixes {
		if strings.HasPrefix(qualifiedName, prefix) {
			return CategoryFramework
		}
	}

	for _, prefix := range c.thirdPartyPrefixes {
		if strings.HasPrefix(qualifiedName, prefix) {
			return CategoryThirdParty
		}
	}

	for _, prefix := range c.dataAccessPrefixes {
		if strings.HasPrefix(qualifiedName, prefix) {
			return CategoryDataAccess
		}
	}

	if strings.HasSuffix(info.ContainingType, "Repository") || strings.Contains(info.ContainingType, "DbContext") {
		return CategoryDataAccess
	}

	for _, name := range c.infrastructureNames {
		if strings.Contains(info.ContainingType, name) {
			return CategoryInfrastructure
		}
	}

	if !info.IsTest && c.inTestProject(info.FilePath) {
		return CategoryTestUtility
	}

	return CategoryBusinessLogic
}

func (c *Classifier) inTestProject(filePath string) bool {
	for _, marker := range c.testProjectMarkers {
		if strings.Contains(filePath, marker) {
			return true
		}
	}

	return false
}

// IsProduction reports whether category counts toward production coverage:
// true for BusinessLogic and DataAccess always, Infrastructure when
// configured, false otherwise.
func (c *Classifier) IsProduction(category Category) bool {
	switch category {
	case CategoryBusinessLogic, CategoryDataAccess:
		return true
	case CategoryInfrastructure:
		return c.treatInfraAsProd
	case CategoryFramework, CategoryThirdParty, CategoryTestUtility:
		return false
	default:
		return false
	}
}

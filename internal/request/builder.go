// Package request assembles the file context needed to ask the candidate
// generator for fixes. Pure assembly: no decision logic lives here.
package request

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

// Builder reads files from the working tree and packages them into patch
// requests.
type Builder struct {
	logger  *zap.Logger
	root    string
	context schemas.ProjectContext
}

// NewBuilder creates a builder rooted at the repository under evaluation.
func NewBuilder(logger *zap.Logger, root string, projectContext schemas.ProjectContext) *Builder {
	return &Builder{
		logger:  logger.Named("request-builder"),
		root:    root,
		context: projectContext,
	}
}

// FromFailure packages a live test failure into a patch request. The test
// file and every affected file are read from the working tree; files that
// cannot be read are omitted, not fatal.
func (b *Builder) FromFailure(failure schemas.TestFailure) schemas.PatchRequest {
	files := make(map[string]string)
	b.readInto(files, failure.TestFile)
	for _, path := range failure.AffectedFiles {
		b.readInto(files, path)
	}

	return schemas.PatchRequest{
		ID:              uuid.New().String(),
		Description:     fmt.Sprintf("Fix failing test %q: %s", failure.TestName, failure.ErrorMessage),
		Failure:         failure,
		Files:           files,
		ExpectedOutcome: fmt.Sprintf("Test %q passes and no other tests regress.", failure.TestName),
		Context:         b.context,
	}
}

// FromTestCase converts a mined test case's before-state into a synthetic
// failure so historical and live units flow through one request path. File
// contents come from the mined before snapshot, not from the working tree.
func (b *Builder) FromTestCase(tc schemas.TestCase) schemas.PatchRequest {
	testName := tc.Bug.Title
	if len(tc.Before.FailingTests) > 0 {
		testName = tc.Before.FailingTests[0]
	}
	testFile := ""
	if len(tc.Bug.TestFiles) > 0 {
		testFile = tc.Bug.TestFiles[0]
	}

	failure := schemas.TestFailure{
		TestName:      testName,
		TestFile:      testFile,
		ErrorMessage:  tc.Bug.ActualBehavior,
		AffectedFiles: tc.Bug.AffectedFiles,
		Type:          failureTypeFor(tc.Bug.Category),
	}

	files := make(map[string]string, len(tc.Before.Files))
	for path, content := range tc.Before.Files {
		files[path] = content
	}

	return schemas.PatchRequest{
		ID:              uuid.New().String(),
		Description:     fmt.Sprintf("Fix historical bug %q (case %s)", tc.Bug.Title, tc.ID),
		Failure:         failure,
		Files:           files,
		ExpectedOutcome: fmt.Sprintf("Test %q passes and no other tests regress.", testName),
		Context:         b.context,
	}
}

// readInto loads one working-tree file into the map, skipping empty paths and
// unreadable files.
func (b *Builder) readInto(files map[string]string, relPath string) {
	if relPath == "" {
		return
	}
	if _, ok := files[relPath]; ok {
		return
	}
	content, err := os.ReadFile(filepath.Join(b.root, relPath))
	if err != nil {
		b.logger.Debug("Omitting unreadable file from request.",
			zap.String("path", relPath),
			zap.Error(err))
		return
	}
	files[relPath] = string(content)
}

// failureTypeFor maps a mined bug category onto the closest failure type for
// the synthetic failure.
func failureTypeFor(category schemas.Category) schemas.FailureType {
	switch category {
	case schemas.CategoryCompilation:
		return schemas.FailureCompilation
	case schemas.CategoryRuntime:
		return schemas.FailureRuntime
	case schemas.CategoryPerformance:
		return schemas.FailureTimeout
	default:
		return schemas.FailureAssertion
	}
}

package processor

import (
	"testing"

	"carboncore/testutil"
)

func TestProcessorImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(testutil.InfraImportForbidden, testutil.ThirdPartyImport),
		"processor graphs are built from configuration only")
}

package compartment

import (
	"testing"

	"carboncore/testutil"
)

func TestSimulationPackagesStayOffInfra(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.InfraImportForbidden,
		"compartment calculation must not reach storage adapters")
}

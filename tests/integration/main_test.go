package integration

import (
	"flag"
	"fmt"
	"os"
	"testing"
)

var (
	runIntegrationTests = flag.Bool("integration", false, "run tests that need a local Docker daemon (default false)")
)

func TestMain(m *testing.M) {
	// flag.Parse() must be called explicitly here, see the TestMain docs.
	flag.Parse()

	if !*runIntegrationTests {
		fmt.Println("skipping docker-backed tests; pass -integration to run them")
		return
	}

	os.Exit(m.Run())
}

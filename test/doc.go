// Package test provides integration testing infrastructure for maasprov.
//
// A Suite runs the real HTTP application against a file-based SQLite job
// store and an in-process fake MAAS, and talks to it through the real API
// client.
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    suite := test.NewSuite(t)
//	    defer suite.Cleanup()
//
//	    suite.MAAS.SetMachines(mocks.NewMachine("abc123", "node-1", maas.StatusReady))
//	    resp, err := suite.APIClient.Provision(suite.Context(), types.ProvisionRequest{
//	        Machines: []string{"node-1"},
//	    })
//	}
package test

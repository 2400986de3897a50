// Package mocks provides test doubles for the external services used by maasprov.
//
// Each mock follows these principles:
//  1. Implements the same interface as the real component
//  2. Provides configurable behavior through exported fields
//  3. Records calls so tests can assert on them
//
// Example usage:
//
//	fake := mocks.NewMAAS(
//		mocks.NewMachine("abc123", "node-1", maas.StatusReady, "gpu"),
//	)
//	fake.SetDeployError("abc123", errors.New("power failure"))
package mocks

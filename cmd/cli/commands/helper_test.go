package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/maasprov/pkg/api/v1/client/mock"
)

// setupTestCommand installs a mock client and captures the command's output
func setupTestCommand(t *testing.T, cmd *cobra.Command) (*mock.MockClient, *bytes.Buffer, *bytes.Buffer) {
	mockClient := &mock.MockClient{}

	original := apiClient
	t.Cleanup(func() {
		apiClient = original
	})
	apiClient = mockClient

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return mockClient, stdout, stderr
}

package resource

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Cmd is the parent command for compute resource identities.
var Cmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage compute resource identities",
}

var privateKey string

func init() {
	Cmd.PersistentFlags().StringVar(&privateKey, "private-key", os.Getenv("PROTOCAAS_RESOURCE_PRIVATE_KEY"), "Hex-encoded compute resource private key")
	Cmd.AddCommand(keygenCmd, codeCmd, signCmd)
}

func writeCmdOut(cmd *cobra.Command, format string, args ...any) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...); err != nil {
		cmd.PrintErrf("write output: %v\n", err)
		return err
	}
	return nil
}

package resource

import (
	"time"

	"github.com/protocaas/protocaas/internal/computeresource"
	"github.com/protocaas/protocaas/internal/signature"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new compute resource identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := signature.GenerateKeyPair()
		if err != nil {
			return err
		}
		return writeCmdOut(cmd, "computeResourceId: %s\nprivateKey: %s\n", key.ID, key.Seed())
	},
}

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Print a resource code proving possession of the key, for registration",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := signature.ParsePrivateKey(privateKey)
		if err != nil {
			return err
		}
		code, err := computeresource.ResourceCode(key, time.Now().Unix())
		if err != nil {
			return err
		}
		return writeCmdOut(cmd, "computeResourceId: %s\nresourceCode: %s\n", key.ID, code)
	},
}

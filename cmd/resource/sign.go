package resource

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/computeresource"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/internal/signature"
	"github.com/protocaas/protocaas/pkg/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	signType     string
	signSpecPath string
	signNodeID   string
	signNodeName string
	signURL      string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print a signed compute resource request",
	Example: `protocaas resource sign --type computeResource.getPendingJobs --node-id n1
protocaas resource sign --type computeResource.setSpec --spec spec.yaml --url http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := signature.ParsePrivateKey(privateKey)
		if err != nil {
			return err
		}

		req, err := signedRequest(key, signType, signNodeID, signNodeName, signSpecPath)
		if err != nil {
			return err
		}

		if signURL != "" {
			var resp map[string]any
			if err := client.New(signURL, nil).Post(cmd.Context(), req, &resp); err != nil {
				return err
			}
			req = resp
		}

		out, err := json.MarshalIndent(req, "", "  ")
		if err != nil {
			return err
		}
		return writeCmdOut(cmd, "%s\n", out)
	},
}

func init() {
	signCmd.Flags().StringVar(&signType, "type", computeresource.OpGetPendingJobs, "Compute resource request type")
	signCmd.Flags().StringVar(&signSpecPath, "spec", "", "YAML spec file for computeResource.setSpec")
	signCmd.Flags().StringVar(&signNodeID, "node-id", "", "Node id reported with job polls")
	signCmd.Flags().StringVar(&signNodeName, "node-name", "", "Node name reported with job polls")
	signCmd.Flags().StringVar(&signURL, "url", "", "Post the signed request to this protocaas server and print the response")
}

func signedRequest(key *signature.KeyPair, typ, nodeID, nodeName, specPath string) (map[string]any, error) {
	if !strings.HasPrefix(typ, "computeResource.") {
		return nil, errors.Errorf("%q is not a compute resource request type", typ)
	}

	sig, err := signature.Sign(map[string]any{"type": typ}, key.PrivateKey)
	if err != nil {
		return nil, err
	}

	req := map[string]any{
		"type":              typ,
		"computeResourceId": key.ID,
		"signature":         sig,
	}
	if nodeID != "" {
		req["nodeId"] = nodeID
		req["nodeName"] = nodeName
	}

	if typ == computeresource.OpSetSpec {
		if specPath == "" {
			return nil, errors.New("--spec is required for " + computeresource.OpSetSpec)
		}
		spec, err := readSpec(specPath)
		if err != nil {
			return nil, err
		}
		req["spec"] = spec
	}
	return req, nil
}

func readSpec(path string) (*models.ComputeResourceSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read spec")
	}
	var spec models.ComputeResourceSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, errors.Wrapf(err, "decode spec %s", path)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

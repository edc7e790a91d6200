package models

import (
	"fmt"

	"gorm.io/datatypes"
)

type AwsBatchOpts struct {
	JobQueue      string `json:"jobQueue" yaml:"jobQueue"`
	JobDefinition string `json:"jobDefinition" yaml:"jobDefinition"`
}

type SlurmOpts struct {
	CpusPerTask *int   `json:"cpusPerTask,omitempty" yaml:"cpusPerTask,omitempty"`
	Partition   string `json:"partition,omitempty" yaml:"partition,omitempty"`
	Time        string `json:"time,omitempty" yaml:"time,omitempty"`
	OtherOpts   string `json:"otherOpts,omitempty" yaml:"otherOpts,omitempty"`
}

// ComputeResourceApp is an app registered on a compute resource together
// with its execution hints.
type ComputeResourceApp struct {
	Name           string        `json:"name" yaml:"name"`
	ExecutablePath string        `json:"executablePath" yaml:"executablePath"`
	Container      string        `json:"container,omitempty" yaml:"container,omitempty"`
	AwsBatch       *AwsBatchOpts `json:"awsBatch,omitempty" yaml:"awsBatch,omitempty"`
	Slurm          *SlurmOpts    `json:"slurm,omitempty" yaml:"slurm,omitempty"`
}

func (a ComputeResourceApp) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if a.AwsBatch != nil && a.Slurm != nil {
		return fmt.Errorf("app %s cannot have both awsBatch and slurm options", a.Name)
	}
	return nil
}

type SpecInput struct {
	Name string `json:"name" yaml:"name"`
	Help string `json:"help" yaml:"help"`
}

type SpecOutput struct {
	Name string `json:"name" yaml:"name"`
	Help string `json:"help" yaml:"help"`
}

type SpecParameter struct {
	Name    string `json:"name" yaml:"name"`
	Help    string `json:"help" yaml:"help"`
	Type    string `json:"type" yaml:"type"`
	Default any    `json:"default,omitempty" yaml:"default,omitempty"`
	Options []any  `json:"options,omitempty" yaml:"options,omitempty"`
	Secret  bool   `json:"secret,omitempty" yaml:"secret,omitempty"`
}

type SpecAttribute struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

type SpecTag struct {
	Tag string `json:"tag" yaml:"tag"`
}

type SpecProcessor struct {
	Name       string          `json:"name" yaml:"name"`
	Help       string          `json:"help" yaml:"help"`
	Inputs     []SpecInput     `json:"inputs" yaml:"inputs"`
	Outputs    []SpecOutput    `json:"outputs" yaml:"outputs"`
	Parameters []SpecParameter `json:"parameters" yaml:"parameters"`
	Attributes []SpecAttribute `json:"attributes" yaml:"attributes"`
	Tags       []SpecTag       `json:"tags" yaml:"tags"`
}

type SpecApp struct {
	Name       string          `json:"name" yaml:"name"`
	Help       string          `json:"help" yaml:"help"`
	Processors []SpecProcessor `json:"processors" yaml:"processors"`
}

// ComputeResourceSpec describes what each app's processors accept and produce.
type ComputeResourceSpec struct {
	Apps []SpecApp `json:"apps" yaml:"apps"`
}

func (s *ComputeResourceSpec) Validate() error {
	for i, app := range s.Apps {
		if app.Name == "" {
			return fmt.Errorf("spec.apps[%d].name is required", i)
		}
		for j, p := range app.Processors {
			if p.Name == "" {
				return fmt.Errorf("spec.apps[%d].processors[%d].name is required", i, j)
			}
		}
	}
	return nil
}

type ComputeResource struct {
	ComputeResourceID string                                   `gorm:"primaryKey" json:"computeResourceId"`
	OwnerID           string                                   `gorm:"index;not null" json:"ownerId"`
	Name              string                                   `json:"name"`
	TimestampCreated  float64                                  `json:"timestampCreated"`
	Apps              datatypes.JSONSlice[ComputeResourceApp]  `gorm:"type:json" json:"apps"`
	Spec              datatypes.JSONType[*ComputeResourceSpec] `gorm:"type:json" json:"spec"`
}

func (c *ComputeResource) Validate() error {
	if err := firstError(
		required("computeResourceId", c.ComputeResourceID),
		required("ownerId", c.OwnerID),
	); err != nil {
		return err
	}
	for _, app := range c.Apps {
		if err := app.Validate(); err != nil {
			return err
		}
	}
	if spec := c.Spec.Data(); spec != nil {
		if err := spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ComputeResourceNode is the liveness record of one polling node.
type ComputeResourceNode struct {
	ComputeResourceID   string  `gorm:"primaryKey" json:"computeResourceId"`
	NodeID              string  `gorm:"primaryKey" json:"nodeId"`
	NodeName            string  `json:"nodeName"`
	TimestampLastActive float64 `gorm:"index" json:"timestampLastActive"`
}

func (n *ComputeResourceNode) Validate() error {
	return firstError(
		required("computeResourceId", n.ComputeResourceID),
		required("nodeId", n.NodeID),
	)
}

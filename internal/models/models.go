package models

import (
	"fmt"
	"time"
)

// All lists every document collection, in migration order.
var All = []interface{}{
	&Workspace{},
	&Project{},
	&File{},
	&DataBlob{},
	&Job{},
	&ComputeResource{},
	&ComputeResourceNode{},
}

// Timestamp converts t to the fractional Unix seconds used on the wire
// and in every stored document.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Now is Timestamp(time.Now()).
func Now() float64 {
	return Timestamp(time.Now())
}

// Validator is implemented by every stored document. Validate reports
// why a document read back from the store cannot be trusted.
type Validator interface {
	Validate() error
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Package monitor validates inbound request bodies against JSON schema
// contracts before they reach the pipeline.
package monitor

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Embedded contracts.
const (
	SearchContract        = "search"
	CheckoutOrderContract = "checkout_order"
	VerifyContract        = "verify"
)

//go:embed schemas/*.json
var schemas embed.FS

// ContractMonitor validates incoming requests against a JSON schema.
type ContractMonitor struct {
	name   string
	schema *gojsonschema.Schema
}

// NewContractMonitor creates a ContractMonitor from a schema file. The
// schemaPath should be absolute or relative to the working directory.
func NewContractMonitor(schemaPath string) (*ContractMonitor, error) {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", schemaPath, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs)))
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", schemaPath, err)
	}
	return &ContractMonitor{name: schemaPath, schema: schema}, nil
}

// NewEmbeddedContract creates a ContractMonitor for one of the embedded
// contracts, e.g. SearchContract.
func NewEmbeddedContract(name string) (*ContractMonitor, error) {
	b, err := schemas.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown contract %q: %w", name, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("error compiling contract %s: %w", name, err)
	}
	return &ContractMonitor{name: name, schema: schema}, nil
}

var contractNames = []string{SearchContract, CheckoutOrderContract, VerifyContract}

// Contracts compiles every embedded contract, keyed by name.
func Contracts() (map[string]*ContractMonitor, error) {
	return LoadContracts("")
}

// LoadContracts compiles every contract, keyed by name. A contract found in
// dir as <name>.json overrides the embedded one; an empty dir uses only the
// embedded contracts.
func LoadContracts(dir string) (map[string]*ContractMonitor, error) {
	out := make(map[string]*ContractMonitor, len(contractNames))
	for _, name := range contractNames {
		cm, err := loadContract(dir, name)
		if err != nil {
			return nil, err
		}
		out[name] = cm
	}
	return out, nil
}

func loadContract(dir, name string) (*ContractMonitor, error) {
	if dir == "" {
		return NewEmbeddedContract(name)
	}
	path := filepath.Join(dir, name+".json")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return NewEmbeddedContract(name)
	}
	cm, err := NewContractMonitor(path)
	if err != nil {
		return nil, err
	}
	cm.name = name
	return cm, nil
}

// Name identifies the contract.
func (cm *ContractMonitor) Name() string { return cm.name }

// Validate validates the given request body against the schema.
// It returns true if valid, or false and a list of validation errors if invalid.
func (cm *ContractMonitor) Validate(requestBody []byte) (bool, []string, error) {
	result, err := cm.schema.Validate(gojsonschema.NewBytesLoader(requestBody))
	if err != nil {
		return false, nil, fmt.Errorf("error during validation: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, desc.String())
	}
	return false, errors, nil
}

// FormatErrors formats a slice of validation error strings into a single string.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(validationErrors, "; ")
}

// Package dataset reads and writes dataset_description.json files.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zjrosen/smripost/internal/log"
)

// DescriptionFile is the dataset description file name.
const DescriptionFile = "dataset_description.json"

// Dataset types.
const (
	TypeRaw        = "raw"
	TypeDerivative = "derivative"
	TypeAtlas      = "atlas"
)

// ErrNoDescription is returned when a dataset has no description file.
var ErrNoDescription = errors.New("dataset description not found")

// Description is a decoded dataset_description.json. Keys this package does
// not manage are preserved as is.
type Description map[string]any

// ReadDescription loads root/dataset_description.json.
func ReadDescription(root string) (Description, error) {
	path := filepath.Join(root, DescriptionFile)
	data, err := os.ReadFile(path) //nolint:gosec // G304: dataset path supplied by the user
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDescription, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var desc Description
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if desc == nil {
		desc = Description{}
	}
	return desc, nil
}

// DatasetType returns the DatasetType field, or "" when unset.
func (d Description) DatasetType() string {
	s, _ := d["DatasetType"].(string)
	return s
}

// GeneratedBy returns the GeneratedBy entries that are objects.
func (d Description) GeneratedBy() []map[string]any {
	raw, _ := d["GeneratedBy"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// DatasetLinks returns the DatasetLinks field with string values.
func (d Description) DatasetLinks() map[string]string {
	raw, _ := d["DatasetLinks"].(map[string]any)
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Tool identifies the program writing a derivative dataset.
type Tool struct {
	Name    string
	Version string
	CodeURL string
}

// Environment variables recording the container the tool runs in.
const (
	EnvDockerTag      = "SMRIPOST_DOCKER_TAG"
	EnvSingularityURL = "SMRIPOST_SINGULARITY_URL"
)

// TemplateFlowURL replaces any local templateflow link.
const TemplateFlowURL = "https://github.com/templateflow/templateflow"

// DerivativeName is the Name written into derivative descriptions.
const DerivativeName = "smripost - Anatomical Postprocessing Outputs"

// WriteResult reports what WriteDerivativeDescription did.
type WriteResult struct {
	Path            string
	Written         bool
	PreviousVersion string // set when an existing description came from another version
	Description     Description
}

// WriteDerivativeDescription derives outputDir's description from
// inputDir's. GeneratedBy gains the first GeneratedBy entry of every linked
// dataset and then tool; DatasetLinks gains links plus templateflow. An
// existing output description is never overwritten.
func WriteDerivativeDescription(inputDir, outputDir string, links map[string]string, tool Tool) (*WriteResult, error) {
	desc, err := ReadDescription(inputDir)
	if err != nil {
		return nil, err
	}

	desc["Name"] = DerivativeName
	desc["BIDSVersion"] = "1.9.0dev"
	desc["DatasetType"] = TypeDerivative
	desc["HowToAcknowledge"] = "Include the generated boilerplate in the methods section."

	generatedBy := make([]any, 0)
	for _, g := range desc.GeneratedBy() {
		generatedBy = append(generatedBy, g)
	}

	names := sortedNames(links)
	for _, name := range names {
		if name == "templateflow" || name == "input" {
			continue
		}
		linked, err := ReadDescription(links[name])
		if err != nil {
			continue
		}
		if gb := linked.GeneratedBy(); len(gb) > 0 {
			generatedBy = append([]any{gb[0]}, generatedBy...)
		}
	}

	self := map[string]any{
		"Name":    tool.Name,
		"Version": tool.Version,
		"CodeURL": tool.CodeURL,
	}
	if tag, ok := os.LookupEnv(EnvDockerTag); ok {
		self["Container"] = map[string]any{"Type": "docker", "Tag": "smripost:" + tag}
	}
	if uri, ok := os.LookupEnv(EnvSingularityURL); ok {
		self["Container"] = map[string]any{"Type": "singularity", "URI": uri}
	}
	desc["GeneratedBy"] = append([]any{self}, generatedBy...)

	datasetLinks := map[string]any{}
	for k, v := range desc.DatasetLinks() {
		datasetLinks[k] = v
	}
	withTemplateFlow := make(map[string]string, len(links)+1)
	for k, v := range links {
		withTemplateFlow[k] = v
	}
	withTemplateFlow["templateflow"] = TemplateFlowURL
	for _, k := range sortedNames(withTemplateFlow) {
		v := withTemplateFlow[k]
		if old, exists := datasetLinks[k]; exists && fmt.Sprint(old) != v {
			log.Warn(log.CatDataset, "Overwriting dataset link", "name", k, "old", old, "new", v)
		}
		datasetLinks[k] = v
	}
	desc["DatasetLinks"] = datasetLinks

	outPath := filepath.Join(outputDir, DescriptionFile)
	result := &WriteResult{Path: outPath, Description: desc}

	if existing, err := ReadDescription(outputDir); err == nil {
		if gb := existing.GeneratedBy(); len(gb) > 0 {
			old := fmt.Sprint(gb[0]["Version"])
			if publicVersion(old) != publicVersion(tool.Version) {
				result.PreviousVersion = old
				log.Warn(log.CatDataset, "Previous output generated by another version", "version", old, "path", outPath)
			}
		}
		result.Description = existing
		return result, nil
	} else if !errors.Is(err, ErrNoDescription) {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", outputDir, err)
	}
	data, err := json.MarshalIndent(desc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode description: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil { //nolint:gosec // G306: dataset files are world readable
		return nil, fmt.Errorf("write %s: %w", outPath, err)
	}
	result.Written = true
	log.Info(log.CatDataset, "Wrote dataset description", "path", outPath)
	return result, nil
}

// publicVersion drops a local version label ("+..."), so 1.2.0+abc and
// 1.2.0 compare equal.
func publicVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	return v
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

package testutil

// DescriptionOption edits a dataset_description.json under construction.
type DescriptionOption func(map[string]any)

// DatasetType sets DatasetType.
func DatasetType(t string) DescriptionOption {
	return func(d map[string]any) { d["DatasetType"] = t }
}

// Name sets Name.
func Name(name string) DescriptionOption {
	return func(d map[string]any) { d["Name"] = name }
}

// GeneratedBy appends a GeneratedBy entry.
func GeneratedBy(name, version string) DescriptionOption {
	return func(d map[string]any) {
		gb, _ := d["GeneratedBy"].([]any)
		d["GeneratedBy"] = append(gb, map[string]any{"Name": name, "Version": version})
	}
}

// Field sets an arbitrary key.
func Field(key string, value any) DescriptionOption {
	return func(d map[string]any) { d[key] = value }
}

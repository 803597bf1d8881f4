package api

import "errors"

// Validator - интерфейс, который могут реализовать DTO
type Validator interface {
	Validate() error
}

func (p UpdateTransformPayload) Validate() error {
	if p.ObjectID == "" {
		return errors.New("object_id is required")
	}
	for i := 0; i < 3; i++ {
		if p.Transform.Scale[i] < 0 {
			return errors.New("scale components must be non-negative")
		}
	}
	return nil
}

func (p QueryBoundsPayload) Validate() error {
	for i := 0; i < 3; i++ {
		if p.Min[i] > p.Max[i] {
			return errors.New("min must not exceed max on any axis")
		}
	}
	return nil
}

func (p FilePayload) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func (p ExportPayload) Validate() error {
	if len(p.Formats) == 0 {
		return errors.New("at least one format is required")
	}
	if p.OutputPath == "" {
		return errors.New("output_path is required")
	}
	return nil
}

func (p ScanAssetsPayload) Validate() error {
	if p.Directory == "" {
		return errors.New("directory is required")
	}
	return nil
}

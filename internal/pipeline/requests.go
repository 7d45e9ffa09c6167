package pipeline

import "github.com/psdglot/psdglot/internal/manifest"

// Wire shapes for the image-editing API. Inputs and outputs are referenced
// by signed URL; the API never sees inline document bytes.

type externalInput struct {
	Href    string `json:"href"`
	Storage string `json:"storage"`
}

type externalOutput struct {
	Href    string `json:"href"`
	Storage string `json:"storage"`
	Type    string `json:"type"`
}

type manifestRequest struct {
	Inputs []externalInput `json:"inputs"`
}

// textEdit addresses a layer by name and replaces its text content. Order
// matches the manifest's pre-order layer sequence.
type textEdit struct {
	Name string            `json:"name"`
	Text manifest.TextInfo `json:"text"`
}

type operationsRequest struct {
	Inputs  []externalInput `json:"inputs"`
	Options struct {
		Layers []textEdit `json:"layers"`
	} `json:"options"`
	Outputs []externalOutput `json:"outputs"`
}
